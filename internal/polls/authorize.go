package polls

// Authorize decides whether the actor may perform the action against the
// poll. The poll argument is the freshly fetched persisted record; ownership
// is always derived from it, never from client-echoed state. A nil poll is
// only legal for actions that do not target an existing poll.
func Authorize(actor Actor, action Action, poll *Poll) error {
	switch action {
	case ActionRead:
		return nil
	case ActionCreate:
		if !actor.Authenticated() {
			return ErrUnauthenticated
		}
		return nil
	case ActionUpdate, ActionDelete:
		if !actor.Authenticated() {
			return ErrUnauthenticated
		}
		if poll == nil {
			return ErrNotFound
		}
		if poll.OwnerID != actor.ID {
			// Collapsed with not-found at the service boundary so callers
			// cannot probe for other users' poll identifiers.
			return ErrForbidden
		}
		return nil
	case ActionVote:
		if poll == nil {
			return ErrNotFound
		}
		return nil
	case ActionListAll:
		if !actor.Authenticated() {
			return ErrUnauthenticated
		}
		if !actor.Admin {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

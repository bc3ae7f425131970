package polls

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pollpilot/backend/internal/ratelimit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCreateLimit  = 10
	defaultCreateWindow = time.Hour
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingLimiter    = errors.New("rate limiter is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "polls.service.new"
	opCreate     = "polls.create"
	opGet        = "polls.get"
	opList       = "polls.list"
	opListAll    = "polls.list_all"
	opUpdate     = "polls.update"
	opDelete     = "polls.delete"
	opVote       = "polls.vote"
	opResults    = "polls.results"
)

// RateLimitError wraps ErrRateLimited and carries the moment the window
// reopens, so the transport layer can emit a Retry-After hint.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ServiceConfig bundles the dependencies for the poll service.
type ServiceConfig struct {
	Database     *gorm.DB
	Clock        func() time.Time
	IDProvider   IDProvider
	Limiter      ratelimit.Admitter
	Logger       *zap.Logger
	CreateLimit  int
	CreateWindow time.Duration
}

// Service orchestrates poll operations. Every mutating entry point runs the
// same linear pipeline: authenticate, rate-limit, authorize, validate,
// persist, invalidate the cached listing. Each stage short-circuits, so no
// side effect happens before the persist stage.
type Service struct {
	db           *gorm.DB
	clock        func() time.Time
	idProvider   IDProvider
	limiter      ratelimit.Admitter
	logger       *zap.Logger
	createLimit  int
	createWindow time.Duration

	listCache sync.Map // owner id -> []Poll
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Limiter == nil {
		return nil, newServiceError(opServiceNew, "missing_limiter", errMissingLimiter)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	createLimit := cfg.CreateLimit
	if createLimit <= 0 {
		createLimit = defaultCreateLimit
	}
	createWindow := cfg.CreateWindow
	if createWindow <= 0 {
		createWindow = defaultCreateWindow
	}

	return &Service{
		db:           cfg.Database,
		clock:        clock,
		idProvider:   cfg.IDProvider,
		limiter:      cfg.Limiter,
		logger:       logger,
		createLimit:  createLimit,
		createWindow: createWindow,
	}, nil
}

// CreatePoll stores a new poll owned by the actor. The owner id is always
// taken from the authenticated actor, never from request payload.
func (s *Service) CreatePoll(ctx context.Context, actor Actor, question string, options []string) (*Poll, error) {
	if err := Authorize(actor, ActionCreate, nil); err != nil {
		return nil, err
	}

	decision := s.limiter.Admit("createPoll:"+actor.ID, s.createLimit, s.createWindow)
	if !decision.Allowed {
		return nil, &RateLimitError{ResetAt: decision.ResetAt}
	}

	if err := ValidatePollFields(question, options); err != nil {
		return nil, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	poll := Poll{
		ID:        id,
		OwnerID:   actor.ID,
		Question:  strings.TrimSpace(question),
		Options:   SanitizeOptions(options),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&poll).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("owner_id", actor.ID))
		return nil, newServiceError(opCreate, "insert_failed", err)
	}

	s.invalidateListing(actor.ID)
	return &poll, nil
}

// GetPoll fetches a single poll. Reads are public.
func (s *Service) GetPoll(ctx context.Context, pollID string) (*Poll, error) {
	var poll Poll
	err := s.db.WithContext(ctx).Where("id = ?", pollID).Take(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("poll_id", pollID))
		return nil, newServiceError(opGet, "query_failed", err)
	}
	return &poll, nil
}

// ListPolls returns the actor's own polls, newest first. Successful reads
// are served from the per-owner cache until a mutation invalidates it.
func (s *Service) ListPolls(ctx context.Context, actor Actor) ([]Poll, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}

	if cached, ok := s.listCache.Load(actor.ID); ok {
		if listing, ok := cached.([]Poll); ok {
			return listing, nil
		}
	}

	var listing []Poll
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", actor.ID).
		Order("created_at DESC").
		Find(&listing).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("owner_id", actor.ID))
		return nil, newServiceError(opList, "query_failed", err)
	}

	s.listCache.Store(actor.ID, listing)
	return listing, nil
}

// ListAllPolls returns every poll including owner identifiers. Reserved for
// actors holding the administrator role; the records are privileged data.
func (s *Service) ListAllPolls(ctx context.Context, actor Actor) ([]Poll, error) {
	if err := Authorize(actor, ActionListAll, nil); err != nil {
		return nil, err
	}

	var listing []Poll
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&listing).Error; err != nil {
		s.logError(opListAll, "query_failed", err)
		return nil, newServiceError(opListAll, "query_failed", err)
	}
	return listing, nil
}

// UpdatePoll rewrites a poll's question and options. Ownership is checked
// against the freshly fetched row, and the write itself is scoped by both id
// and owner_id as a second enforcement layer. Not-owned and not-found are
// reported identically.
func (s *Service) UpdatePoll(ctx context.Context, actor Actor, pollID, question string, options []string) (*Poll, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}

	var current Poll
	err := s.db.WithContext(ctx).Where("id = ?", pollID).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logError(opUpdate, "owner_fetch_failed", err, zap.String("poll_id", pollID))
		return nil, newServiceError(opUpdate, "owner_fetch_failed", err)
	}

	if err := Authorize(actor, ActionUpdate, &current); err != nil {
		if errors.Is(err, ErrForbidden) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := ValidatePollFields(question, options); err != nil {
		return nil, err
	}

	updated := current
	updated.Question = strings.TrimSpace(question)
	updated.Options = SanitizeOptions(options)
	updated.UpdatedAt = s.clock().UTC()

	result := s.db.WithContext(ctx).
		Model(&Poll{}).
		Where("id = ? AND owner_id = ?", pollID, actor.ID).
		Updates(map[string]interface{}{
			"question":   updated.Question,
			"options":    updated.Options,
			"updated_at": updated.UpdatedAt,
		})
	if result.Error != nil {
		s.logError(opUpdate, "update_failed", result.Error, zap.String("poll_id", pollID))
		return nil, newServiceError(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	s.invalidateListing(actor.ID)
	return &updated, nil
}

// DeletePoll removes a poll and its votes in one transaction. The delete is
// scoped by id and owner_id; a zero-row match comes back as the same
// not-found error whether the poll is missing or owned by someone else.
func (s *Service) DeletePoll(ctx context.Context, actor Actor, pollID string) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", pollID, actor.ID).Delete(&Poll{})
		if result.Error != nil {
			return newServiceError(opDelete, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("poll_id = ?", pollID).Delete(&Vote{}).Error; err != nil {
			return newServiceError(opDelete, "vote_cascade_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrNotFound) {
			s.logError(opDelete, "transaction_failed", txErr, zap.String("poll_id", pollID))
		}
		return txErr
	}

	s.invalidateListing(actor.ID)
	return nil
}

// SubmitVote records one ballot. Authenticated voters get at most one vote
// per poll: the existence pre-check catches the common case and the partial
// unique index settles the check-then-insert race, with both paths mapped to
// the same ErrAlreadyVoted. Anonymous ballots carry a nil voter id and are
// not de-duplicated.
func (s *Service) SubmitVote(ctx context.Context, actor Actor, pollID string, optionIndex int) (*Vote, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return nil, newFieldError("optionIndex", "out of range")
	}

	var voterID *string
	if actor.Authenticated() {
		id := actor.ID
		voterID = &id

		var existing int64
		if err := s.db.WithContext(ctx).
			Model(&Vote{}).
			Where("poll_id = ? AND voter_id = ?", pollID, actor.ID).
			Count(&existing).Error; err != nil {
			s.logError(opVote, "existence_check_failed", err, zap.String("poll_id", pollID))
			return nil, newServiceError(opVote, "existence_check_failed", err)
		}
		if existing > 0 {
			return nil, ErrAlreadyVoted
		}
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opVote, "id_generation_failed", err)
		return nil, newServiceError(opVote, "id_generation_failed", err)
	}

	vote := Vote{
		ID:          id,
		PollID:      pollID,
		VoterID:     voterID,
		OptionIndex: optionIndex,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&vote).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyVoted
		}
		s.logError(opVote, "insert_failed", err, zap.String("poll_id", pollID))
		return nil, newServiceError(opVote, "insert_failed", err)
	}

	return &vote, nil
}

// Results tallies votes per option index. Vote rows pointing past the
// current option count are skipped, and the count slice is always sized to
// the poll's current options, so a poll edited after voting still yields a
// well-formed tally.
func (s *Service) Results(ctx context.Context, pollID string) (*Results, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	var votes []Vote
	if err := s.db.WithContext(ctx).Where("poll_id = ?", pollID).Find(&votes).Error; err != nil {
		s.logError(opResults, "vote_query_failed", err, zap.String("poll_id", pollID))
		return nil, newServiceError(opResults, "vote_query_failed", err)
	}

	counts := make([]int, len(poll.Options))
	total := 0
	for _, vote := range votes {
		if vote.OptionIndex < 0 || vote.OptionIndex >= len(counts) {
			continue
		}
		counts[vote.OptionIndex]++
		total++
	}

	percentages := make([]int, len(counts))
	if total > 0 {
		for i, count := range counts {
			percentages[i] = int(math.Round(float64(count) * 100 / float64(total)))
		}
	}

	return &Results{
		PollID:      poll.ID,
		Question:    poll.Question,
		Options:     append([]string(nil), poll.Options...),
		Counts:      counts,
		Percentages: percentages,
		Total:       total,
	}, nil
}

func (s *Service) invalidateListing(ownerID string) {
	s.listCache.Delete(ownerID)
}

// isUniqueViolation recognizes the store's duplicate-key signal regardless
// of whether the dialector translates it to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("poll service error", attrs...)
}

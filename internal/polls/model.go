package polls

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// MinOptions is the smallest option count a poll may carry.
	MinOptions = 2
	// MaxOptions is the largest option count a poll may carry.
	MaxOptions = 10

	maxQuestionLength = 500
	maxOptionLength   = 200
)

// Action enumerates the operations the authorization policy rules on.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionVote    Action = "vote"
	ActionListAll Action = "list_all"
)

// Actor identifies the caller of a service operation. A zero ID means the
// caller is anonymous. Admin is resolved from the durable role claim when the
// session token is validated, never recomputed from mutable profile fields.
type Actor struct {
	ID    string
	Admin bool
}

// Authenticated reports whether the actor carries a verified identity.
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// Poll models a persisted poll with its ordered option labels.
type Poll struct {
	ID        string                      `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	OwnerID   string                      `gorm:"column:owner_id;size:190;not null;index" json:"owner_id"`
	Question  string                      `gorm:"column:question;size:500;not null" json:"question"`
	Options   datatypes.JSONSlice[string] `gorm:"column:options;not null" json:"options"`
	CreatedAt time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Poll) TableName() string {
	return "polls"
}

// Vote models a single immutable ballot. VoterID is nil for anonymous votes;
// the partial unique index on (poll_id, voter_id) only covers authenticated
// votes, so anonymous ballots are not de-duplicated.
type Vote struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	PollID      string    `gorm:"column:poll_id;size:190;not null;index" json:"poll_id"`
	VoterID     *string   `gorm:"column:voter_id;size:190" json:"voter_id,omitempty"`
	OptionIndex int       `gorm:"column:option_index;not null" json:"option_index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}

// Results carries the tally for one poll. Counts always has exactly one slot
// per current poll option; Percentages are integers rounded to nearest.
type Results struct {
	PollID      string   `json:"poll_id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Counts      []int    `json:"counts"`
	Percentages []int    `json:"percentages"`
	Total       int      `json:"total"`
}

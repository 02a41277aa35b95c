package arena

import (
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

type DurationType string

const (
	DurationUnlimited DurationType = "unlimited"
	DurationInterval  DurationType = "interval"
)

// Duration bounds how long an arena stays open after it starts.
type Duration struct {
	Type    DurationType `json:"type"`
	Minutes int          `json:"minutes,omitempty"`
}

type StartType string

const (
	StartImmediate StartType = "immediate"
	StartScheduled StartType = "scheduled"
)

// Start says when play begins: on first join, or at a fixed date.
type Start struct {
	Type StartType  `json:"type"`
	Date *time.Time `json:"date,omitempty"`
}

// AudienceMember is an invited player holding a reserved slot.
type AudienceMember struct {
	UserID           string                `json:"userId"`
	IdentityProvider game.IdentityProvider `json:"identityProvider"`
	Username         string                `json:"username,omitempty"`
}

func (m AudienceMember) Key() game.UserKey {
	return game.UserKey{UserID: m.UserID, IdentityProvider: m.IdentityProvider}
}

// Config is fixed at creation.
type Config struct {
	WordCount          int              `json:"wordCount"`
	Words              []string         `json:"words,omitempty"`
	RandomWords        bool             `json:"randomWords"`
	AudienceSize       int              `json:"audienceSize"`
	Audience           []AudienceMember `json:"audience,omitempty"`
	Duration           Duration         `json:"duration"`
	Start              Start            `json:"start"`
	SuddenDeath        bool             `json:"suddenDeath"`
	IsHardModeRequired bool             `json:"isHardModeRequired"`
}

// Member is a joined player. Members are never removed; a kicked member keeps
// its entry with KickedAt set and no longer occupies a slot.
type Member struct {
	UserID           string                `json:"userId"`
	IdentityProvider game.IdentityProvider `json:"identityProvider"`
	Username         string                `json:"username,omitempty"`
	JoinedAt         time.Time             `json:"joinedAt"`
	KickedAt         *time.Time            `json:"kickedAt,omitempty"`
}

func (m Member) Key() game.UserKey {
	return game.UserKey{UserID: m.UserID, IdentityProvider: m.IdentityProvider}
}

// Arena is a multiplayer competition over a fixed number of words.
type Arena struct {
	ID             string       `json:"id"`
	CreatorKey     game.UserKey `json:"creatorKey"`
	Config         Config       `json:"config"`
	Members        []Member     `json:"members"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastNotifiedAt *time.Time   `json:"lastNotifiedAt,omitempty"`
	FinishedAt     *time.Time   `json:"finishedAt,omitempty"`
	Version        int          `json:"-"`
}

// Clone deep-copies a.
func (a *Arena) Clone() *Arena {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Config.Words = append([]string(nil), a.Config.Words...)
	cp.Config.Audience = append([]AudienceMember(nil), a.Config.Audience...)
	if a.Config.Start.Date != nil {
		d := *a.Config.Start.Date
		cp.Config.Start.Date = &d
	}
	cp.Members = make([]Member, len(a.Members))
	for i, m := range a.Members {
		if m.KickedAt != nil {
			k := *m.KickedAt
			m.KickedAt = &k
		}
		cp.Members[i] = m
	}
	cp.StartedAt = copyTime(a.StartedAt)
	cp.LastNotifiedAt = copyTime(a.LastNotifiedAt)
	cp.FinishedAt = copyTime(a.FinishedAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ActiveMembers returns members that have not been kicked.
func (a *Arena) ActiveMembers() []Member {
	out := make([]Member, 0, len(a.Members))
	for _, m := range a.Members {
		if m.KickedAt == nil {
			out = append(out, m)
		}
	}
	return out
}

func (a *Arena) memberIndex(k game.UserKey) int {
	for i, m := range a.Members {
		if m.Key() == k {
			return i
		}
	}
	return -1
}

func (a *Arena) inAudience(k game.UserKey) bool {
	for _, m := range a.Config.Audience {
		if m.Key() == k {
			return true
		}
	}
	return false
}

// Membership is the closed set of relations between a user and an arena.
type Membership string

const (
	MembershipAudience       Membership = "AUDIENCE"         // invited, slot reserved, not joined yet
	MembershipFreeSlot       Membership = "FREE_SLOT"        // not joined, an open slot exists
	MembershipMember         Membership = "MEMBER"           // joined, arena full
	MembershipMemberFreeSlot Membership = "MEMBER_FREE_SLOT" // joined, others can still join
	MembershipMemberKicked   Membership = "MEMBER_KICKED"    // joined, then removed by the creator
	MembershipNotMember      Membership = "NOT_MEMBER"       // not joined, no slot left
)

// IsMember reports whether the user holds an active slot.
func (m Membership) IsMember() bool {
	return m == MembershipMember || m == MembershipMemberFreeSlot
}

// CanJoin reports whether a join would be accepted slot-wise.
func (m Membership) CanJoin() bool {
	return m == MembershipAudience || m == MembershipFreeSlot
}

// Status is the arena-wide phase.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusOpen    Status = "OPEN"
	StatusEnded   Status = "ENDED"
)

// CompletionStatus tracks one member's progress through the word list.
type CompletionStatus string

const (
	CompletionNotStarted CompletionStatus = "NOT_STARTED"
	CompletionInProgress CompletionStatus = "IN_PROGRESS"
	CompletionCompleted  CompletionStatus = "COMPLETED"
)

// Availability is the derived state of a (user, arena) pairing.
type Availability struct {
	Membership       Membership       `json:"membership"`
	Status           Status           `json:"status"`
	CompletionStatus CompletionStatus `json:"completionStatus"`
	CompletedRounds  int              `json:"completedRounds"`
	HasNextGame      bool             `json:"hasNextGame"`
	SuddenDeathOver  bool             `json:"suddenDeathOver"`
	FreeSlots        int              `json:"freeSlots"`
}

// Standing is one member's position in an arena.
type Standing struct {
	Member    Member `json:"member"`
	Rank      int    `json:"rank"`
	Completed int    `json:"completed"`
	Wins      int    `json:"wins"`
	Guesses   int    `json:"guesses"`
}

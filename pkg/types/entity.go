package types

import "time"

// Entity is a canonical business object in the entity directory: a customer,
// vendor, person, product, or project with a stable identifier. Entities are
// never deleted; they accumulate aliases and mention statistics over time.
type Entity struct {
	// Core identification fields
	ID            string     `json:"id"`             // Unique identifier (format: ent:type:uuid)
	CanonicalName string     `json:"canonical_name"` // The authoritative display name
	Type          EntityType `json:"type"`           // Entity type (see EntityType constants)

	// DomainReference links the entity to an external business record
	// (e.g. a CRM account id). Empty when the entity is conversation-only.
	DomainReference string `json:"domain_reference,omitempty"`

	// Mention statistics, maintained by the resolver on every successful
	// resolution. MentionCount feeds the frequency boost during
	// disambiguation.
	MentionCount    int        `json:"mention_count"`
	LastMentionedAt *time.Time `json:"last_mentioned_at,omitempty"`

	// HasActiveWork is set when the entity has open related business
	// records (open orders, active projects). Feeds the active-work boost.
	HasActiveWork bool `json:"has_active_work,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version supports optimistic concurrency on updates.
	Version int64 `json:"version"`
}

// EntityAlias is a learned surface form for an entity. Aliases are created
// when a fuzzy match is accepted (by user confirmation or by exceeding the
// auto-accept threshold) and reinforced on reuse.
//
// An alias always carries the confidence it was learned with. UserConfirmed
// is only ever set by an explicit confirmation event, never inferred.
type EntityAlias struct {
	ID            string    `json:"id"`
	AliasText     string    `json:"alias_text"` // Lowercased surface form
	EntityID      string    `json:"entity_id"`
	Confidence    float64   `json:"confidence"` // Confidence at learning time, [0,1]
	UsageCount    int       `json:"usage_count"`
	UserConfirmed bool      `json:"user_confirmed"`
	LastUsedAt    time.Time `json:"last_used_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResolutionOutcome distinguishes the three possible results of resolving a
// mention: a single confident entity, a set of candidates needing caller
// disambiguation, or nothing above threshold.
type ResolutionOutcome string

// Resolution outcome constants.
const (
	OutcomeResolved  ResolutionOutcome = "resolved"
	OutcomeAmbiguous ResolutionOutcome = "ambiguous"
	OutcomeNotFound  ResolutionOutcome = "not_found"
)

// Candidate is one scored entity candidate considered during resolution.
type Candidate struct {
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// ResolutionResult is the outcome of resolving a surface mention.
//
// When Outcome is OutcomeResolved, EntityID and Confidence are set and
// Candidates holds the full scored slate for audit. When OutcomeAmbiguous,
// Candidates is ordered best-first and the caller must disambiguate. When
// OutcomeNotFound, both are empty; callers must not fabricate an entity.
type ResolutionResult struct {
	Outcome    ResolutionOutcome `json:"outcome"`
	EntityID   string            `json:"entity_id,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Candidates []Candidate       `json:"candidates,omitempty"`

	// NeedsAliasConfirmation is set on a first-time fuzzy acceptance: the
	// resolution is returned but the alias is not persisted until the
	// caller confirms it via ConfirmAlias.
	NeedsAliasConfirmation bool `json:"needs_alias_confirmation,omitempty"`
}

// ConversationContext carries the per-conversation signals the resolver uses
// for disambiguation scoring: which entities were mentioned how many turns
// ago in the current conversation.
type ConversationContext struct {
	// UserID identifies the requesting user; mention statistics are scoped
	// per user.
	UserID string `json:"user_id"`

	// TurnsSinceMention maps entity id to the number of conversation turns
	// since that entity was last mentioned. Absent entries mean the entity
	// has not come up in this conversation.
	TurnsSinceMention map[string]int `json:"turns_since_mention,omitempty"`
}

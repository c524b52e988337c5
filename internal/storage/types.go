package storage

import (
	"errors"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict indicates that an optimistic-concurrency update
	// lost the race: the stored version differs from the caller's copy.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateAlias indicates that an alias with the same surface
	// form already exists for the entity.
	ErrDuplicateAlias = errors.New("duplicate alias")
)

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination for entity directory scans.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 50, max: 500).
	Limit int

	// Type filters entities by type. Empty means no filter.
	Type types.EntityType
}

// Normalize applies defaults and bounds to the ListOptions.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
}

// MemoryFilter selects memories for list queries. Zero values mean "no
// constraint on this dimension".
type MemoryFilter struct {
	// UserID scopes the query to one user's memories.
	UserID string

	// EntityID restricts results to memories linking the given entity.
	EntityID string

	// Kinds restricts results to the given memory kinds.
	Kinds []types.MemoryKind

	// IncludeDeprecated includes deprecated memories. By default only
	// active memories are returned.
	IncludeDeprecated bool

	// OnlyDeprecated restricts results to deprecated memories. Implies
	// IncludeDeprecated.
	OnlyDeprecated bool

	// DeprecatedBefore restricts results to memories deprecated strictly
	// before this time. Zero value means no bound. Used by hard-delete GC.
	DeprecatedBefore time.Time

	// CreatedBefore restricts results to memories created strictly before
	// this time. Zero value means no bound.
	CreatedBefore time.Time

	// Limit caps the number of results. Zero means no cap.
	Limit int

	// OldestFirst orders results by created_at ascending instead of the
	// default descending. Consolidation consumes oldest memories first.
	OldestFirst bool
}

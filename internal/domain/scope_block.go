package domain

import "time"

// ScopeBlockStatus represents the status of a scope block.
type ScopeBlockStatus string

const (
	ScopeBlockStatusPending    ScopeBlockStatus = "pending"
	ScopeBlockStatusInProgress ScopeBlockStatus = "in_progress"
	ScopeBlockStatusCompleted  ScopeBlockStatus = "completed"
)

// ScopeBlock is a node in a track's hierarchical work-breakdown outline,
// e.g. numbered clauses "1", "1.1", "1.1.2". The tree is acyclic and every
// non-root node's parent belongs to the same track. Progress of a non-leaf
// node is always the mean of its direct children, never authored directly.
type ScopeBlock struct {
	ID         string
	TrackID    string
	Code       string
	Title      string
	Content    string
	ParentID   *string
	OrderIndex int
	Progress   float64 // 0-100
	Status     ScopeBlockStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsRoot returns true for blocks at the top of the outline.
func (b *ScopeBlock) IsRoot() bool {
	return b.ParentID == nil
}

package domain

import "time"

// ProgressItem is the mutable current-state progress record for an entity,
// keyed by (EntityType, EntityID). One row per tracked entity, upserted.
type ProgressItem struct {
	ID              string
	EntityType      string
	EntityID        string
	ProgressPercent float64
	Status          string
	StartDate       *time.Time
	EndDate         *time.Time
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProgressEvent is an immutable history row appended whenever an item's
// percent changes, capturing the old and new values.
type ProgressEvent struct {
	ID          string
	EntityType  string
	EntityID    string
	OldPercent  float64
	NewPercent  float64
	ChangedBy   *string // nil for system recomputes
	CreatedAt   time.Time
}

// KPI is a per-track key performance indicator row feeding the weighted
// track score. Achievement is capped at 100 per row before averaging.
type KPI struct {
	ID        string
	TrackID   string
	Name      string
	Target    float64
	Actual    float64
	CreatedAt time.Time
}

// Achievement returns min(actual/target*100, 100), or 0 when target <= 0.
func (k *KPI) Achievement() float64 {
	if k.Target <= 0 {
		return 0
	}
	pct := k.Actual / k.Target * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Gap returns the remaining distance to target.
func (k *KPI) Gap() float64 {
	return k.Target - k.Actual
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/notify"
	"github.com/trackboard/trackboard/internal/repository"
)

// Weights of the four track progress signals. Fixed constants, not
// configurable per call; they sum to 1.0.
const (
	taskSignalWeight   = 0.4
	reportSignalWeight = 0.1
	scopeSignalWeight  = 0.3
	kpiSignalWeight    = 0.2
)

// reportSaturation is the report count at which the activity score saturates.
const reportSaturation = 10

// Weights of the two employee score components.
const (
	employeeTaskWeight  = 0.7
	employeeScopeWeight = 0.3
)

// maxRollupDepth bounds the upward rollup walk against a corrupt cyclic
// parent chain.
const maxRollupDepth = 100

// entity types used in the generic progress records.
const (
	EntityTask       = "task"
	EntityScopeBlock = "scope_block"
)

// Aggregator computes progress rollups: the recursive scope-block walk, the
// weighted per-track score, and weighted per-task and per-employee averages.
type Aggregator struct {
	blocks   *repository.ScopeBlockRepository
	stats    *repository.StatsRepository
	progress *repository.ProgressRepository
	notifier notify.Notifier
}

// NewAggregator creates a new Aggregator.
func NewAggregator(
	blocks *repository.ScopeBlockRepository,
	stats *repository.StatsRepository,
	progress *repository.ProgressRepository,
	notifier notify.Notifier,
) *Aggregator {
	return &Aggregator{
		blocks:   blocks,
		stats:    stats,
		progress: progress,
		notifier: notifier,
	}
}

// SetScopeBlockProgress writes a leaf block's progress and walks the parent
// chain upward, re-deriving each ancestor from its direct children. The walk
// runs after the leaf write is committed; a rollup failure is logged and left
// for the repair pass instead of rolling back the leaf update.
func (a *Aggregator) SetScopeBlockProgress(ctx context.Context, blockID string, percent float64, actorID *string) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: progress must be between 0 and 100", domain.ErrValidation)
	}

	block, err := a.blocks.GetByID(ctx, blockID)
	if err != nil {
		return err
	}

	// Non-leaf progress is always derived from children, never authored.
	_, childCount, err := a.blocks.ChildrenStats(ctx, blockID)
	if err != nil {
		return err
	}
	if childCount > 0 {
		return fmt.Errorf("%w: progress of a block with children is derived from them", domain.ErrValidation)
	}

	percent = Round2(percent)
	if err := a.blocks.UpdateProgress(ctx, blockID, percent); err != nil {
		return err
	}
	a.recordProgress(ctx, EntityScopeBlock, blockID, block.Progress, percent, actorID)
	a.notifier.Publish(notify.Event{
		Name:     notify.EventScopeBlockProgress,
		Room:     notify.TrackRoom(block.TrackID),
		TrackID:  block.TrackID,
		EntityID: blockID,
		Payload:  map[string]any{"progress": percent},
	})

	if block.ParentID != nil {
		if err := a.rollupFrom(ctx, *block.ParentID); err != nil {
			// The leaf write is committed; the rollup is idempotent and
			// re-derivable, so leave the repair to a later pass.
			slog.Error("scope block rollup failed",
				"block_id", blockID,
				"error", err,
			)
		}
	}

	return nil
}

// rollupFrom recomputes the given block from its direct children and repeats
// for its parent while the recomputed value changes. The walk is bounded and
// tracks visited ids to survive a corrupt cyclic parent chain.
func (a *Aggregator) rollupFrom(ctx context.Context, blockID string) error {
	visited := make(map[string]bool)
	current := blockID

	for depth := 0; ; depth++ {
		if depth >= maxRollupDepth {
			return fmt.Errorf("%w: rollup exceeded %d levels at block %s", domain.ErrScopeBlockCycle, maxRollupDepth, current)
		}
		if visited[current] {
			return fmt.Errorf("%w: block %s revisited", domain.ErrScopeBlockCycle, current)
		}
		visited[current] = true

		block, err := a.blocks.GetByID(ctx, current)
		if err != nil {
			return err
		}

		mean, count, err := a.blocks.ChildrenStats(ctx, current)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil // became a leaf, nothing to derive
		}

		derived := Round2(mean)
		if derived == block.Progress {
			return nil // stabilized, ancestors are unchanged
		}

		if err := a.blocks.UpdateProgress(ctx, current, derived); err != nil {
			return err
		}
		a.recordProgress(ctx, EntityScopeBlock, current, block.Progress, derived, nil)
		a.notifier.Publish(notify.Event{
			Name:     notify.EventScopeBlockProgress,
			Room:     notify.TrackRoom(block.TrackID),
			TrackID:  block.TrackID,
			EntityID: current,
			Payload:  map[string]any{"progress": derived},
		})

		if block.ParentID == nil {
			return nil
		}
		current = *block.ParentID
	}
}

// RepairTrack re-derives every parent block of a track from current children,
// deepest first. Safe to run at any time; the rollup is idempotent.
func (a *Aggregator) RepairTrack(ctx context.Context, trackID string) (int, error) {
	parents, err := a.blocks.ListParents(ctx, trackID)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, parent := range parents {
		mean, count, err := a.blocks.ChildrenStats(ctx, parent.ID)
		if err != nil {
			return repaired, err
		}
		if count == 0 {
			continue
		}
		derived := Round2(mean)
		if derived == parent.Progress {
			continue
		}
		if err := a.blocks.UpdateProgress(ctx, parent.ID, derived); err != nil {
			return repaired, err
		}
		a.recordProgress(ctx, EntityScopeBlock, parent.ID, parent.Progress, derived, nil)
		repaired++
	}
	return repaired, nil
}

// RecordTaskProgress tracks a task's progress change in the generic progress
// records after the task row itself is committed.
func (a *Aggregator) RecordTaskProgress(ctx context.Context, taskID string, oldPercent, newPercent float64, actorID *string) {
	a.recordProgress(ctx, EntityTask, taskID, oldPercent, newPercent, actorID)
}

// recordProgress upserts the generic progress row for an entity and appends
// an immutable change event when the percent actually moved.
func (a *Aggregator) recordProgress(ctx context.Context, entityType, entityID string, oldPercent, newPercent float64, actorID *string) {
	item := &domain.ProgressItem{
		EntityType:      entityType,
		EntityID:        entityID,
		ProgressPercent: newPercent,
		Status:          progressStatus(newPercent),
	}
	if _, _, err := a.progress.Upsert(ctx, item); err != nil {
		slog.Error("progress item upsert failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return
	}

	if oldPercent == newPercent {
		return
	}

	event := &domain.ProgressEvent{
		EntityType: entityType,
		EntityID:   entityID,
		OldPercent: oldPercent,
		NewPercent: newPercent,
		ChangedBy:  actorID,
	}
	if err := a.progress.AppendEvent(ctx, event); err != nil {
		slog.Error("progress event append failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return
	}

	a.notifier.Publish(notify.Event{
		Name:     notify.EventProgressUpdated,
		Room:     notify.GlobalRoom,
		EntityID: entityID,
		Payload: map[string]any{
			"entity_type": entityType,
			"old_percent": oldPercent,
			"new_percent": newPercent,
		},
	})
}

func progressStatus(percent float64) string {
	switch {
	case percent >= 100:
		return "completed"
	case percent > 0:
		return "in_progress"
	default:
		return "pending"
	}
}

// SignalScore is one component of the weighted track score: its capped score,
// its fixed weight, and the raw row count behind it for transparency.
type SignalScore struct {
	Score  float64
	Weight float64
	Count  int
}

// TrackProgress is the full per-track progress summary.
type TrackProgress struct {
	TrackID string

	Tasks       SignalScore // mean task progress
	Reports     SignalScore // saturating report activity
	ScopeBlocks SignalScore // mean block progress at all depths
	KPIs        SignalScore // mean capped KPI achievement

	Overall float64 // weighted sum of the four signals

	// The two headline task numbers are published side by side: the share
	// of tasks completed and the weight-normalized progress average.
	SimpleProgress   float64
	WeightedProgress float64
}

// TrackWeightedProgress pulls the four independent signals for a track and
// combines them with the fixed weights. Empty signals score 0, never NaN.
func (a *Aggregator) TrackWeightedProgress(ctx context.Context, trackID string) (*TrackProgress, error) {
	taskStats, err := a.stats.TaskStatsByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	reportCount, err := a.stats.ReportCountByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	blockStats, err := a.stats.ScopeBlockStatsByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	kpis, err := a.stats.KPIsByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	taskScore := Round2(taskStats.MeanProgress)
	reportScore := Round2(ReportActivityScore(reportCount))
	scopeScore := Round2(blockStats.MeanProgress)
	kpiScore := Round2(MeanKPIAchievement(kpis))

	overall := Round2(taskScore*taskSignalWeight +
		reportScore*reportSignalWeight +
		scopeScore*scopeSignalWeight +
		kpiScore*kpiSignalWeight)

	return &TrackProgress{
		TrackID:          trackID,
		Tasks:            SignalScore{Score: taskScore, Weight: taskSignalWeight, Count: taskStats.Count},
		Reports:          SignalScore{Score: reportScore, Weight: reportSignalWeight, Count: reportCount},
		ScopeBlocks:      SignalScore{Score: scopeScore, Weight: scopeSignalWeight, Count: blockStats.Count},
		KPIs:             SignalScore{Score: kpiScore, Weight: kpiSignalWeight, Count: len(kpis)},
		Overall:          overall,
		SimpleProgress:   Round2(completionRate(taskStats.CompletedCount, taskStats.Count)),
		WeightedProgress: WeightedAverage(taskStats.WeightedSum, taskStats.WeightSum),
	}, nil
}

// EmployeeProgress is the per-employee progress summary.
type EmployeeProgress struct {
	UserID string

	TaskScore  float64 // weighted average over the employee's tasks
	ScopeScore float64 // mean block progress across tracks the tasks touch
	Overall    float64 // 0.7 * tasks + 0.3 * scope

	TaskCount  int
	TrackCount int
}

// EmployeeWeightedProgress computes an employee's score from their own tasks
// and the scope-block progress of the tracks those tasks touch.
func (a *Aggregator) EmployeeWeightedProgress(ctx context.Context, userID string) (*EmployeeProgress, error) {
	taskStats, err := a.stats.TaskStatsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	blockStats, err := a.stats.ScopeBlockStatsByTracks(ctx, taskStats.TrackIDs)
	if err != nil {
		return nil, err
	}

	taskScore := WeightedAverage(taskStats.WeightedSum, taskStats.WeightSum)
	scopeScore := Round2(blockStats.MeanProgress)

	return &EmployeeProgress{
		UserID:     userID,
		TaskScore:  taskScore,
		ScopeScore: scopeScore,
		Overall:    Round2(taskScore*employeeTaskWeight + scopeScore*employeeScopeWeight),
		TaskCount:  taskStats.Count,
		TrackCount: len(taskStats.TrackIDs),
	}, nil
}

// WeightedAverage returns sum(progress*weight)/sum(weight) rounded to one
// decimal, or 0 for an empty set.
func WeightedAverage(weightedSum, weightSum float64) float64 {
	if weightSum <= 0 {
		return 0
	}
	return Round1(weightedSum / weightSum)
}

// ReportActivityScore is the saturating activity signal:
// min(count/10 * 100, 100).
func ReportActivityScore(count int) float64 {
	score := float64(count) / reportSaturation * 100
	if score > 100 {
		return 100
	}
	return score
}

// MeanKPIAchievement averages per-row capped achievement across KPIs.
// The per-row cap keeps one over-performing KPI from masking others.
func MeanKPIAchievement(kpis []*domain.KPI) float64 {
	if len(kpis) == 0 {
		return 0
	}
	var sum float64
	for _, kpi := range kpis {
		sum += kpi.Achievement()
	}
	return sum / float64(len(kpis))
}

func completionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

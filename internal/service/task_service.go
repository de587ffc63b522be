package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/notify"
	"github.com/trackboard/trackboard/internal/repository"
)

// TaskService coordinates task mutations: assignment validation, persistence,
// aggregate recomputation, audit recording and outbound events.
type TaskService struct {
	pool           *pgxpool.Pool
	taskRepo       *repository.TaskRepository
	assignmentRepo *repository.TaskAssignmentRepository
	trackRepo      *repository.TrackRepository
	userRepo       *repository.UserRepository
	scopeBlockRepo *repository.ScopeBlockRepository
	validator      *AssignmentValidator
	aggregator     *Aggregator
	audit          *AuditWriter
	notifier       notify.Notifier
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	assignmentRepo *repository.TaskAssignmentRepository,
	trackRepo *repository.TrackRepository,
	userRepo *repository.UserRepository,
	scopeBlockRepo *repository.ScopeBlockRepository,
	aggregator *Aggregator,
	audit *AuditWriter,
	notifier notify.Notifier,
) *TaskService {
	return &TaskService{
		pool:           pool,
		taskRepo:       taskRepo,
		assignmentRepo: assignmentRepo,
		trackRepo:      trackRepo,
		userRepo:       userRepo,
		scopeBlockRepo: scopeBlockRepo,
		validator:      NewAssignmentValidator(trackRepo, userRepo),
		aggregator:     aggregator,
		audit:          audit,
		notifier:       notifier,
	}
}

// CreateTaskParams holds the input for CreateTask.
type CreateTaskParams struct {
	Title          string
	TitleLocalized string
	Description    string
	Priority       domain.TaskPriority
	Progress       float64
	Weight         float64
	DueDate        *time.Time
	TrackID        *string
	ScopeBlockID   *string
	Assignee       domain.Assignee
	AssigneeIDs    []string // individually assigned users
}

// CreateTask validates the assignment, persists the task with its individual
// assignment rows, records a CREATED audit entry and fans creation events out
// to the global stream, the involved track rooms and each assigned user.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams, actor domain.Actor) (*domain.Task, error) {
	if err := s.validator.Validate(ctx, params.Assignee); err != nil {
		return nil, err
	}
	if params.Priority != "" && !params.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, params.Priority)
	}
	if params.Progress < 0 || params.Progress > 100 {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", domain.ErrValidation)
	}
	if err := s.checkOwnerRefs(ctx, params.TrackID, params.ScopeBlockID); err != nil {
		return nil, err
	}
	if err := s.requireCreate(ctx, params.TrackID, actor); err != nil {
		return nil, err
	}
	if err := s.checkUsersExist(ctx, params.AssigneeIDs); err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:          params.Title,
		TitleLocalized: params.TitleLocalized,
		Description:    params.Description,
		Priority:       params.Priority,
		Progress:       params.Progress,
		Weight:         params.Weight,
		DueDate:        params.DueDate,
		TrackID:        params.TrackID,
		ScopeBlockID:   params.ScopeBlockID,
		Assignee:       params.Assignee,
		CreatedBy:      actor.ID,
	}
	s.applyCompletionRules(task)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if _, err := s.taskRepo.Create(ctx, tx, task); err != nil {
		return nil, err
	}
	if len(params.AssigneeIDs) > 0 {
		if _, err := s.assignmentRepo.Add(ctx, tx, task.ID, params.AssigneeIDs, actor.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.audit.Record(ctx, task.ID, &actor.ID, domain.AuditCreated, nil, snapshotTask(task))
	s.aggregator.RecordTaskProgress(ctx, task.ID, 0, task.Progress, &actor.ID)
	s.publishTaskEvents(notify.EventTaskCreated, task, params.AssigneeIDs)

	slog.Info("task created",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"assignee_type", task.Assignee.Kind,
	)

	return task, nil
}

// UpdateTaskParams holds a partial task patch. Nil fields are left untouched.
// AssigneeIDs replaces the individual assignment rows wholesale when non-nil.
type UpdateTaskParams struct {
	Title          *string
	TitleLocalized *string
	Description    *string
	Priority       *domain.TaskPriority
	Progress       *float64
	Weight         *float64
	DueDate        *time.Time
	Status         *domain.TaskStatus
	TrackID        *string
	ScopeBlockID   *string
	Assignee       *domain.Assignee
	AssigneeIDs    []string
}

// UpdateTask applies a patch to a task. The assignment is re-validated only
// when it is present in the patch; the audit entry is tagged REASSIGNED when
// the assignee fields changed, UPDATED otherwise.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, patch UpdateTaskParams, actor domain.Actor) (*domain.Task, error) {
	if patch.Assignee != nil {
		if err := s.validator.Validate(ctx, *patch.Assignee); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, *patch.Priority)
	}
	if patch.Progress != nil && (*patch.Progress < 0 || *patch.Progress > 100) {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", domain.ErrValidation)
	}
	if patch.Weight != nil && *patch.Weight <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive", domain.ErrValidation)
	}
	if err := s.checkOwnerRefs(ctx, patch.TrackID, patch.ScopeBlockID); err != nil {
		return nil, err
	}
	if err := s.checkUsersExist(ctx, patch.AssigneeIDs); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(ctx, task, actor); err != nil {
		return nil, err
	}

	before := snapshotTask(task)
	oldProgress := task.Progress

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.TitleLocalized != nil {
		task.TitleLocalized = *patch.TitleLocalized
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Weight != nil {
		task.Weight = *patch.Weight
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	if patch.TrackID != nil {
		task.TrackID = patch.TrackID
	}
	if patch.ScopeBlockID != nil {
		task.ScopeBlockID = patch.ScopeBlockID
	}

	reassigned := false
	if patch.Assignee != nil && *patch.Assignee != task.Assignee {
		task.Assignee = *patch.Assignee
		reassigned = true
	}

	if patch.Progress != nil {
		task.Progress = *patch.Progress
		// Progress hitting 100 promotes the status unless the caller set
		// one explicitly in the same patch.
		if *patch.Progress >= 100 && patch.Status == nil {
			task.Status = domain.TaskStatusCompleted
		}
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	s.applyCompletionRules(task)

	if err := s.taskRepo.Update(ctx, tx, task); err != nil {
		return nil, err
	}
	if patch.AssigneeIDs != nil {
		if err := s.assignmentRepo.Replace(ctx, tx, task.ID, patch.AssigneeIDs, actor.ID); err != nil {
			return nil, err
		}
		reassigned = true
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	action := domain.AuditUpdated
	if reassigned {
		action = domain.AuditReassigned
	}
	s.audit.Record(ctx, task.ID, &actor.ID, action, before, snapshotTask(task))
	if task.Progress != oldProgress {
		s.aggregator.RecordTaskProgress(ctx, task.ID, oldProgress, task.Progress, &actor.ID)
	}
	s.publishTaskEvents(notify.EventTaskUpdated, task, nil)
	if task.Status == domain.TaskStatusCompleted && before.Status != domain.TaskStatusCompleted {
		s.notifyCompleted(task)
	}

	slog.Info("task updated",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"action", action,
	)

	return task, nil
}

// ChangeStatus transitions a task's status. Authorization is independent of
// generic edit rights: privileged roles, any individually assigned user, or
// the direct USER-type assignee; everyone else gets ErrForbidden.
func (s *TaskService) ChangeStatus(ctx context.Context, taskID string, status domain.TaskStatus, actor domain.Actor) (*domain.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}

	allowed := actor.Role.IsPrivileged() || task.IsDirectAssignee(actor.ID)
	if !allowed {
		assigned, err := s.assignmentRepo.IsAssigned(ctx, taskID, actor.ID)
		if err != nil {
			return nil, err
		}
		allowed = assigned
	}
	if !allowed {
		return nil, fmt.Errorf("%w: user %s may not change status of task %s", domain.ErrForbidden, actor.ID, taskID)
	}

	before := snapshotTask(task)
	oldProgress := task.Progress
	task.Status = status
	s.applyCompletionRules(task)

	if err := s.taskRepo.Update(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.audit.Record(ctx, task.ID, &actor.ID, domain.AuditStatusChanged, before, snapshotTask(task))
	if task.Progress != oldProgress {
		s.aggregator.RecordTaskProgress(ctx, task.ID, oldProgress, task.Progress, &actor.ID)
	}
	s.publishTaskEvents(notify.EventTaskUpdated, task, nil)
	if status == domain.TaskStatusCompleted && before.Status != domain.TaskStatusCompleted {
		s.notifyCompleted(task)
	}

	slog.Info("task status changed",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"old_status", before.Status,
		"new_status", status,
	)

	return task, nil
}

// DeleteTask soft-deletes a task. The row, its audit trail and its progress
// events are retained; the task disappears from all visibility predicates and
// aggregations. Individual assignment rows are removed.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string, actor domain.Actor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ctx, task, actor, domain.CapabilityDelete); err != nil {
		return err
	}

	before := snapshotTask(task)
	now := time.Now()
	if err := s.taskRepo.SoftDelete(ctx, tx, taskID, now); err != nil {
		return err
	}
	if err := s.assignmentRepo.DeleteByTask(ctx, tx, taskID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	task.Deleted = true
	task.DeletedAt = &now
	s.audit.Record(ctx, taskID, &actor.ID, domain.AuditDeleted, before, snapshotTask(task))
	s.publishTaskEvents(notify.EventTaskDeleted, task, nil)

	slog.Info("task deleted",
		"task_id", taskID,
		"actor_id", actor.ID,
	)

	return nil
}

// AssignUsers additively assigns users to a task, skipping ids that are
// already assigned. Only the newly added users are notified.
func (s *TaskService) AssignUsers(ctx context.Context, taskID string, userIDs []string, actor domain.Actor) ([]string, error) {
	if err := s.checkUsersExist(ctx, userIDs); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(ctx, task, actor); err != nil {
		return nil, err
	}

	added, err := s.assignmentRepo.Add(ctx, tx, taskID, userIDs, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.audit.Record(ctx, taskID, &actor.ID, domain.AuditReassigned, nil,
		map[string]any{"added_assignees": added})
	for _, userID := range added {
		s.notifier.Publish(notify.Event{
			Name:     notify.EventTaskAssigned,
			Room:     notify.UserRoom(userID),
			TrackID:  trackIDOrEmpty(task),
			EntityID: task.ID,
			Payload:  map[string]any{"title": task.Title},
		})
	}

	slog.Info("task assignees added",
		"task_id", taskID,
		"actor_id", actor.ID,
		"added", len(added),
	)

	return added, nil
}

// subObjectActions is the audit vocabulary of task sub-objects.
var subObjectActions = map[domain.AuditAction]bool{
	domain.AuditChecklistAdded:   true,
	domain.AuditChecklistUpdated: true,
	domain.AuditChecklistDeleted: true,
	domain.AuditAdminNoteAdded:   true,
	domain.AuditAdminNoteUpdated: true,
	domain.AuditAdminNoteDeleted: true,
	domain.AuditUpdateAdded:      true,
}

// RecordSubObjectChange funnels checklist, admin-note and free-text update
// changes through the task-scoped audit writer with their own action tags.
// Storage of the sub-objects themselves belongs to the wider platform.
func (s *TaskService) RecordSubObjectChange(
	ctx context.Context,
	taskID string,
	actor domain.Actor,
	action domain.AuditAction,
	before, after json.RawMessage,
) error {
	if !subObjectActions[action] {
		return fmt.Errorf("%w: %q is not a sub-object audit action", domain.ErrValidation, action)
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireEdit(ctx, task, actor); err != nil {
		return err
	}

	s.audit.Record(ctx, taskID, &actor.ID, action, before, after)
	return nil
}

// AttachFile validates attachment metadata against the extension allow-list
// and size cap before the bytes are handed to storage, then audits the upload.
func (s *TaskService) AttachFile(ctx context.Context, taskID string, meta domain.FileMeta, actor domain.Actor) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireEdit(ctx, task, actor); err != nil {
		return err
	}

	s.audit.Record(ctx, taskID, &actor.ID, domain.AuditFileUploaded, nil,
		map[string]any{"name": meta.Name, "size": meta.Size})
	return nil
}

// RemoveFile audits the removal of an attachment.
func (s *TaskService) RemoveFile(ctx context.Context, taskID string, fileName string, actor domain.Actor) error {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireEdit(ctx, task, actor); err != nil {
		return err
	}

	s.audit.Record(ctx, taskID, &actor.ID, domain.AuditFileDeleted,
		map[string]any{"name": fileName}, nil)
	return nil
}

// applyCompletionRules keeps status, progress and completion date consistent:
// a completed task carries progress 100 and a completion date; any other
// status clears the date.
func (s *TaskService) applyCompletionRules(task *domain.Task) {
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.Status == domain.TaskStatusCompleted {
		task.Progress = 100
		if task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}
		return
	}
	task.CompletedAt = nil
}

// checkOwnerRefs verifies that a referenced owning track and scope block
// exist, so a bad id surfaces as a NotFound sentinel instead of a foreign key
// violation bubbling out of the insert.
func (s *TaskService) checkOwnerRefs(ctx context.Context, trackID, scopeBlockID *string) error {
	if trackID != nil {
		ok, err := s.trackRepo.Exists(ctx, *trackID)
		if err != nil {
			return fmt.Errorf("check track existence: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrTrackNotFound, *trackID)
		}
	}
	if scopeBlockID != nil {
		ok, err := s.scopeBlockRepo.Exists(ctx, *scopeBlockID)
		if err != nil {
			return fmt.Errorf("check scope block existence: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrScopeBlockNotFound, *scopeBlockID)
		}
	}
	return nil
}

func (s *TaskService) checkUsersExist(ctx context.Context, userIDs []string) error {
	for _, userID := range userIDs {
		ok, err := s.userRepo.Exists(ctx, userID)
		if err != nil {
			return fmt.Errorf("check assignee existence: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
	}
	return nil
}

// requireCreate gates creation of track-owned tasks: privileged roles always
// may, everyone else needs a create grant on that track. Tasks without an
// owning track are open to any authenticated caller.
func (s *TaskService) requireCreate(ctx context.Context, trackID *string, actor domain.Actor) error {
	if actor.Role.IsPrivileged() || trackID == nil {
		return nil
	}
	perm, err := s.userRepo.GetPermission(ctx, actor.ID, *trackID)
	if err != nil {
		return err
	}
	if perm != nil && perm.Has(domain.CapabilityCreate) {
		return nil
	}
	return fmt.Errorf("%w: user %s may not create tasks in track %s", domain.ErrForbidden, actor.ID, *trackID)
}

// requireEdit authorizes a generic task mutation: privileged roles, holders
// of the edit capability on the owning track, or the creator.
func (s *TaskService) requireEdit(ctx context.Context, task *domain.Task, actor domain.Actor) error {
	return s.requireCapability(ctx, task, actor, domain.CapabilityEdit)
}

func (s *TaskService) requireCapability(ctx context.Context, task *domain.Task, actor domain.Actor, capability domain.Capability) error {
	if actor.Role.IsPrivileged() {
		return nil
	}
	if task.TrackID != nil {
		perm, err := s.userRepo.GetPermission(ctx, actor.ID, *task.TrackID)
		if err != nil {
			return err
		}
		if perm != nil && perm.Has(capability) {
			return nil
		}
	}
	if task.IsCreatedBy(actor.ID) {
		return nil
	}
	return fmt.Errorf("%w: user %s lacks %s on task %s", domain.ErrForbidden, actor.ID, capability, task.ID)
}

// publishTaskEvents emits a task event to the global stream, the owning track
// room, the assignee-track room and, optionally, a set of user rooms.
func (s *TaskService) publishTaskEvents(name string, task *domain.Task, userIDs []string) {
	payload := map[string]any{
		"title":  task.Title,
		"status": string(task.Status),
	}

	rooms := []string{notify.GlobalRoom}
	if task.TrackID != nil {
		rooms = append(rooms, notify.TrackRoom(*task.TrackID))
	}
	if task.Assignee.Kind == domain.AssigneeTrack && task.Assignee.TrackID != nil {
		room := notify.TrackRoom(*task.Assignee.TrackID)
		if task.TrackID == nil || *task.TrackID != *task.Assignee.TrackID {
			rooms = append(rooms, room)
		}
	}
	for _, userID := range userIDs {
		rooms = append(rooms, notify.UserRoom(userID))
	}

	for _, room := range rooms {
		s.notifier.Publish(notify.Event{
			Name:     name,
			Room:     room,
			TrackID:  trackIDOrEmpty(task),
			EntityID: task.ID,
			Payload:  payload,
		})
	}
}

// notifyCompleted additionally tells the task's creator about the completion.
func (s *TaskService) notifyCompleted(task *domain.Task) {
	s.notifier.Publish(notify.Event{
		Name:     notify.EventTaskCompleted,
		Room:     notify.UserRoom(task.CreatedBy),
		TrackID:  trackIDOrEmpty(task),
		EntityID: task.ID,
		Payload:  map[string]any{"title": task.Title},
	})
}

func trackIDOrEmpty(task *domain.Task) string {
	if task.TrackID != nil {
		return *task.TrackID
	}
	return ""
}

// rollback rolls a transaction back, tolerating the already-committed case.
func (s *TaskService) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/handler/dto"
	"github.com/trackboard/trackboard/internal/middleware"
	"github.com/trackboard/trackboard/internal/repository"
	"github.com/trackboard/trackboard/internal/service"
)

// handleListTasks returns the tasks visible to the caller.
// @Summary List tasks
// @Description Lists tasks through the caller's visibility predicate, with optional filters. Counts are computed over the visible subset only.
// @Tags tasks
// @Produce json
// @Param lens query string false "Listing lens: mine or track"
// @Param track_id query string false "Filter by track UUID"
// @Param status query string false "Comma-separated statuses: pending,in_progress,completed,delayed,cancelled"
// @Param priority query string false "Comma-separated priorities: high,critical"
// @Param search query string false "Case-insensitive substring match on title and description"
// @Param sort query string false "Sort fields: -priority,due_date,created_at,progress,weight"
// @Param limit query int false "Page size (1-200, default 50)"
// @Param offset query int false "Page offset (default 0)"
// @Success 200 {object} dto.TasksListResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	query := r.URL.Query()

	// The visibility predicate is built first and carried into the query;
	// all other filters narrow the visible subset.
	visibility, err := service.BuildVisibilityFilter(actor, service.Lens(query.Get("lens")))
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	var trackID *string
	if trackParam := query.Get("track_id"); trackParam != "" {
		trackID = &trackParam
	}

	var statuses []string
	if statusParam := query.Get("status"); statusParam != "" {
		statuses = splitAndTrim(statusParam, ",")
	}

	var priorities []string
	if priorityParam := query.Get("priority"); priorityParam != "" {
		priorities = splitAndTrim(priorityParam, ",")
	}

	var sort []string
	if sortParam := query.Get("sort"); sortParam != "" {
		sort = splitAndTrim(sortParam, ",")
	}

	limit := 50
	if limitParam := query.Get("limit"); limitParam != "" {
		if n, err := strconv.Atoi(limitParam); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	offset := 0
	if offsetParam := query.Get("offset"); offsetParam != "" {
		if n, err := strconv.Atoi(offsetParam); err == nil && n >= 0 {
			offset = n
		}
	}

	results, total, err := h.taskRepo.List(ctx, repository.TaskListFilters{
		Visibility: visibility,
		TrackID:    trackID,
		Statuses:   statuses,
		Priorities: priorities,
		Search:     query.Get("search"),
		Sort:       sort,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tasks")
		return
	}

	tasks := make([]dto.TaskResponse, len(results))
	for i, task := range results {
		tasks[i] = dto.ToTaskResponse(task)
	}

	respondJSON(w, http.StatusOK, dto.TasksListResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// handleCreateTask creates a new task.
// @Summary Create a task
// @Description Creates a task with a polymorphic assignee and optional individually assigned users.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	var req dto.CreateTaskRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	priority := domain.TaskPriorityMedium
	if req.Priority != "" {
		priority = domain.TaskPriority(req.Priority)
	}

	task, err := h.taskService.CreateTask(ctx, service.CreateTaskParams{
		Title:          req.Title,
		TitleLocalized: req.TitleLocalized,
		Description:    req.Description,
		Priority:       priority,
		Progress:       req.Progress,
		Weight:         req.Weight,
		DueDate:        req.DueDate,
		TrackID:        req.TrackID,
		ScopeBlockID:   req.ScopeBlockID,
		Assignee: domain.Assignee{
			Kind:    domain.AssigneeKind(req.AssigneeType),
			TrackID: req.AssigneeTrack,
			UserID:  req.AssigneeUser,
		},
		AssigneeIDs: req.AssigneeIDs,
	}, actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// handleGetTask retrieves a task with its audit trail.
// @Summary Get task details
// @Description Get a task with its individually assigned users and full audit trail
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskDetailResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	assigneeIDs, err := h.assignmentRepo.ListUserIDs(ctx, taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch assignments")
		return
	}

	if !service.CanViewTask(actor, task) {
		// The individual-assignment leg is not part of the loaded task.
		assigned := false
		for _, id := range assigneeIDs {
			if id == actor.ID {
				assigned = true
				break
			}
		}
		if !assigned {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "Task not visible")
			return
		}
	}

	entries, err := h.auditRepo.ListByTask(ctx, taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch audit trail")
		return
	}

	audit := make([]dto.AuditEntryResponse, len(entries))
	for i, entry := range entries {
		audit[i] = dto.ToAuditEntryResponse(entry)
	}
	if assigneeIDs == nil {
		assigneeIDs = []string{}
	}

	respondJSON(w, http.StatusOK, dto.TaskDetailResponse{
		Task:        dto.ToTaskResponse(task),
		AssigneeIDs: assigneeIDs,
		Audit:       audit,
	})
}

// handleUpdateTask applies a partial update to a task.
// @Summary Update a task
// @Description Applies a patch. Progress 100 promotes the status to completed unless the patch carries an explicit status.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateTaskRequest true "Task patch"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	patch := service.UpdateTaskParams{
		Title:          req.Title,
		TitleLocalized: req.TitleLocalized,
		Description:    req.Description,
		Progress:       req.Progress,
		Weight:         req.Weight,
		DueDate:        req.DueDate,
		TrackID:        req.TrackID,
		ScopeBlockID:   req.ScopeBlockID,
		AssigneeIDs:    req.AssigneeIDs,
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if req.AssigneeType != nil {
		patch.Assignee = &domain.Assignee{
			Kind:    domain.AssigneeKind(*req.AssigneeType),
			TrackID: req.AssigneeTrack,
			UserID:  req.AssigneeUser,
		}
	}

	task, err := h.taskService.UpdateTask(ctx, taskID, patch, actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleChangeStatus changes a task's status.
// @Summary Change task status
// @Description Moves a task to a new status. Entering completed stamps progress 100 and the completion date; leaving it clears the date.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.ChangeStatusRequest true "Status change request"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [patch]
func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.ChangeStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.taskService.ChangeStatus(ctx, taskID, domain.TaskStatus(req.Status), actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleDeleteTask soft-deletes a task.
// @Summary Delete a task
// @Description Soft-deletes a task. Audit history and progress events are retained.
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(ctx, taskID, actor); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAssignUsers adds individually assigned users to a task.
// @Summary Assign users
// @Description Adds users to a task's individual assignment list. Already assigned users are skipped.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.AssignUsersRequest true "User ids to assign"
// @Success 200 {object} map[string][]string
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/assign [post]
func (h *Handler) handleAssignUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.AssignUsersRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	added, err := h.taskService.AssignUsers(ctx, taskID, req.UserIDs, actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}
	if added == nil {
		added = []string{}
	}

	respondJSON(w, http.StatusOK, map[string][]string{"added": added})
}

// handleSubObjectChange records a checklist, admin-note or update change in
// the task audit log.
// @Summary Record a sub-object change
// @Description Appends an audit entry for checklist, admin-note and free-text update changes.
// @Tags tasks
// @Accept json
// @Param id path string true "Task ID"
// @Param request body dto.SubObjectChangeRequest true "Audit entry"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/audit [post]
func (h *Handler) handleSubObjectChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.SubObjectChangeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	err = h.taskService.RecordSubObjectChange(ctx, taskID, actor, domain.AuditAction(req.Action), req.Before, req.After)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAttachFile validates and audits a file attachment.
// @Summary Attach a file
// @Description Validates attachment metadata against the extension allow-list and size cap, then audits the upload.
// @Tags tasks
// @Accept json
// @Param id path string true "Task ID"
// @Param request body dto.AttachFileRequest true "Attachment metadata"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/files [post]
func (h *Handler) handleAttachFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.AttachFileRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	err = h.taskService.AttachFile(ctx, taskID, domain.FileMeta{Name: req.Name, Size: req.Size}, actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveFile audits the removal of an attachment.
// @Summary Remove a file
// @Description Audits the removal of a task attachment.
// @Tags tasks
// @Param id path string true "Task ID"
// @Param name path string true "File name"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/files/{name} [delete]
func (h *Handler) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	taskID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	fileName := r.PathValue("name")
	if fileName == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "file name is required")
		return
	}

	if err := h.taskService.RemoveFile(ctx, taskID, fileName, actor); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"net/http"

	"github.com/trackboard/trackboard/internal/handler/dto"
	"github.com/trackboard/trackboard/internal/middleware"
	"github.com/trackboard/trackboard/internal/service"
)

// handleTrackProgress returns the weighted progress summary for a track.
// @Summary Get track progress
// @Description Computes the weighted track score from task progress, report activity, scope-block progress and KPI achievement.
// @Tags progress
// @Produce json
// @Param id path string true "Track ID"
// @Success 200 {object} dto.TrackProgressResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tracks/{id}/progress [get]
func (h *Handler) handleTrackProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := middleware.GetActorFromContext(ctx); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	trackID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.aggregator.TrackWeightedProgress(ctx, trackID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTrackProgressResponse(progress))
}

// handleEmployeeProgress returns the weighted progress summary for a user.
// @Summary Get employee progress
// @Description Computes an employee's score from their own tasks and the scope-block progress of the tracks those tasks touch.
// @Tags progress
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} dto.EmployeeProgressResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /employees/{id}/progress [get]
func (h *Handler) handleEmployeeProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := middleware.GetActorFromContext(ctx); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	userID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.aggregator.EmployeeWeightedProgress(ctx, userID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToEmployeeProgressResponse(progress))
}

// handleProgressEvents returns the append-only change history for an entity.
// @Summary List progress events
// @Description Lists the immutable old/new percent history rows for a task or scope block, oldest first.
// @Tags progress
// @Produce json
// @Param entity_type path string true "Entity type: task or scope_block"
// @Param entity_id path string true "Entity ID"
// @Success 200 {array} dto.ProgressEventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /progress/{entity_type}/{entity_id}/events [get]
func (h *Handler) handleProgressEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := middleware.GetActorFromContext(ctx); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	entityType := r.PathValue("entity_type")
	if entityType != service.EntityTask && entityType != service.EntityScopeBlock {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "entity_type must be task or scope_block")
		return
	}

	entityID, ok := extractID(w, r, "entity_id")
	if !ok {
		return
	}

	events, err := h.progressRepo.EventsByEntity(ctx, entityType, entityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch progress events")
		return
	}

	out := make([]dto.ProgressEventResponse, len(events))
	for i, event := range events {
		out[i] = dto.ToProgressEventResponse(event)
	}

	respondJSON(w, http.StatusOK, out)
}

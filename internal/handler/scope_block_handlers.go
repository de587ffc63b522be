package handler

import (
	"net/http"

	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/handler/dto"
	"github.com/trackboard/trackboard/internal/middleware"
	"github.com/trackboard/trackboard/internal/repository"
	"github.com/trackboard/trackboard/internal/service"
)

// handleCreateScopeBlock adds a node to a track's outline.
// @Summary Create a scope block
// @Description Creates an outline node. A non-root node's parent must belong to the same track.
// @Tags scope-blocks
// @Accept json
// @Produce json
// @Param request body dto.CreateScopeBlockRequest true "Scope block creation request"
// @Success 201 {object} dto.ScopeBlockResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /scope-blocks [post]
func (h *Handler) handleCreateScopeBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	var req dto.CreateScopeBlockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	block, err := h.scopeBlockService.CreateBlock(ctx, service.CreateScopeBlockParams{
		TrackID:    req.TrackID,
		Code:       req.Code,
		Title:      req.Title,
		Content:    req.Content,
		ParentID:   req.ParentID,
		OrderIndex: req.OrderIndex,
	}, actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToScopeBlockResponse(block))
}

// handleUpdateScopeBlock updates a scope block's descriptive fields.
// @Summary Update a scope block
// @Description Applies a patch to title, content or status. Progress is never authored here.
// @Tags scope-blocks
// @Accept json
// @Produce json
// @Param id path string true "Scope block ID"
// @Param request body dto.UpdateScopeBlockRequest true "Scope block patch"
// @Success 200 {object} dto.ScopeBlockResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /scope-blocks/{id} [patch]
func (h *Handler) handleUpdateScopeBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	blockID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateScopeBlockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	patch := service.UpdateScopeBlockParams{
		Title:   req.Title,
		Content: req.Content,
	}
	if req.Status != nil {
		status := domain.ScopeBlockStatus(*req.Status)
		patch.Status = &status
	}

	block, err := h.scopeBlockService.UpdateBlock(ctx, blockID, patch, actor)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToScopeBlockResponse(block))
}

// handleScopeBlockProgress sets a leaf block's progress and rolls ancestors up.
// @Summary Set scope block progress
// @Description Writes a leaf block's progress and re-derives each ancestor from its direct children. Parent progress is derived, never authored.
// @Tags scope-blocks
// @Accept json
// @Produce json
// @Param id path string true "Scope block ID"
// @Param request body dto.ScopeBlockProgressRequest true "Progress value"
// @Success 200 {object} dto.ScopeBlockResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /scope-blocks/{id}/progress [patch]
func (h *Handler) handleScopeBlockProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	blockID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.ScopeBlockProgressRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.aggregator.SetScopeBlockProgress(ctx, blockID, req.Progress, &actor.ID); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	updated, err := h.scopeBlockRepo.GetByID(ctx, blockID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToScopeBlockResponse(updated))
}

// handleListScopeBlocks returns a track's full outline in tree order.
// @Summary List scope blocks
// @Description Lists a track's outline ordered by code and order index.
// @Tags scope-blocks
// @Produce json
// @Param id path string true "Track ID"
// @Success 200 {array} dto.ScopeBlockResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tracks/{id}/scope-blocks [get]
func (h *Handler) handleListScopeBlocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := middleware.GetActorFromContext(ctx); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	trackID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	blocks, err := h.scopeBlockService.ListOutline(ctx, trackID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	out := make([]dto.ScopeBlockResponse, len(blocks))
	for i, block := range blocks {
		out[i] = dto.ToScopeBlockResponse(block)
	}

	respondJSON(w, http.StatusOK, out)
}

// handleReorderScopeBlocks applies a batch reorder to a track's outline.
// @Summary Reorder scope blocks
// @Description Applies new order indexes to a track's outline in one transaction.
// @Tags scope-blocks
// @Accept json
// @Param id path string true "Track ID"
// @Param request body dto.ReorderScopeBlocksRequest true "Reorder items"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tracks/{id}/scope-blocks/reorder [post]
func (h *Handler) handleReorderScopeBlocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := middleware.GetActorFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	trackID, ok := extractID(w, r, "id")
	if !ok {
		return
	}

	var req dto.ReorderScopeBlocksRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	items := make([]repository.ReorderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = repository.ReorderItem{BlockID: item.BlockID, OrderIndex: item.OrderIndex}
	}

	if err := h.scopeBlockService.ReorderBlocks(ctx, trackID, items, actor); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

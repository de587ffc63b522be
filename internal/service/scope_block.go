package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/repository"
)

// ScopeBlockService manages a track's work-breakdown outline.
type ScopeBlockService struct {
	blocks   *repository.ScopeBlockRepository
	tracks   *repository.TrackRepository
	userRepo *repository.UserRepository
}

// NewScopeBlockService creates a new ScopeBlockService.
func NewScopeBlockService(
	blocks *repository.ScopeBlockRepository,
	tracks *repository.TrackRepository,
	userRepo *repository.UserRepository,
) *ScopeBlockService {
	return &ScopeBlockService{blocks: blocks, tracks: tracks, userRepo: userRepo}
}

// CreateScopeBlockParams holds the input for CreateBlock.
type CreateScopeBlockParams struct {
	TrackID    string
	Code       string
	Title      string
	Content    string
	ParentID   *string
	OrderIndex int
}

// CreateBlock adds a node to a track's outline. A non-root node's parent must
// belong to the same track.
func (s *ScopeBlockService) CreateBlock(ctx context.Context, params CreateScopeBlockParams, actor domain.Actor) (*domain.ScopeBlock, error) {
	if err := s.requireEdit(ctx, params.TrackID, actor); err != nil {
		return nil, err
	}
	if params.Code == "" || params.Title == "" {
		return nil, fmt.Errorf("%w: code and title are required", domain.ErrValidation)
	}

	ok, err := s.tracks.Exists(ctx, params.TrackID)
	if err != nil {
		return nil, fmt.Errorf("check track existence: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTrackNotFound, params.TrackID)
	}

	if params.ParentID != nil {
		parent, err := s.blocks.GetByID(ctx, *params.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.TrackID != params.TrackID {
			return nil, fmt.Errorf("%w: parent block belongs to another track", domain.ErrValidation)
		}
	}

	block := &domain.ScopeBlock{
		TrackID:    params.TrackID,
		Code:       params.Code,
		Title:      params.Title,
		Content:    params.Content,
		ParentID:   params.ParentID,
		OrderIndex: params.OrderIndex,
	}
	if _, err := s.blocks.Create(ctx, block); err != nil {
		return nil, err
	}

	slog.Info("scope block created",
		"block_id", block.ID,
		"track_id", block.TrackID,
		"code", block.Code,
	)

	return block, nil
}

// UpdateScopeBlockParams holds a partial block patch.
type UpdateScopeBlockParams struct {
	Title   *string
	Content *string
	Status  *domain.ScopeBlockStatus
}

// UpdateBlock patches title, content and status of a block. Progress is not
// patchable here; leaves go through the aggregator and parents are derived.
func (s *ScopeBlockService) UpdateBlock(ctx context.Context, blockID string, patch UpdateScopeBlockParams, actor domain.Actor) (*domain.ScopeBlock, error) {
	block, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(ctx, block.TrackID, actor); err != nil {
		return nil, err
	}

	if patch.Title != nil {
		block.Title = *patch.Title
	}
	if patch.Content != nil {
		block.Content = *patch.Content
	}
	if patch.Status != nil {
		block.Status = *patch.Status
	}

	if err := s.blocks.Update(ctx, block); err != nil {
		return nil, err
	}
	return block, nil
}

// ReorderBlocks applies a batch of sibling position changes atomically, so a
// partially reordered outline is never visible.
func (s *ScopeBlockService) ReorderBlocks(ctx context.Context, trackID string, items []repository.ReorderItem, actor domain.Actor) error {
	if err := s.requireEdit(ctx, trackID, actor); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return s.blocks.Reorder(ctx, items)
}

// ListOutline returns the full outline of a track.
func (s *ScopeBlockService) ListOutline(ctx context.Context, trackID string) ([]*domain.ScopeBlock, error) {
	return s.blocks.ListByTrack(ctx, trackID)
}

func (s *ScopeBlockService) requireEdit(ctx context.Context, trackID string, actor domain.Actor) error {
	if actor.Role.IsPrivileged() {
		return nil
	}
	perm, err := s.userRepo.GetPermission(ctx, actor.ID, trackID)
	if err != nil {
		return err
	}
	if perm != nil && perm.Has(domain.CapabilityEdit) {
		return nil
	}
	return fmt.Errorf("%w: user %s lacks edit on track %s", domain.ErrForbidden, actor.ID, trackID)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/trackboard/trackboard/internal/handler/dto"
	"github.com/trackboard/trackboard/internal/middleware"
	"github.com/trackboard/trackboard/internal/notify"
	"github.com/trackboard/trackboard/internal/repository"
	"github.com/trackboard/trackboard/internal/service"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool              *pgxpool.Pool
	taskService       *service.TaskService
	scopeBlockService *service.ScopeBlockService
	aggregator        *service.Aggregator
	taskRepo          *repository.TaskRepository
	assignmentRepo    *repository.TaskAssignmentRepository
	auditRepo         *repository.AuditRepository
	scopeBlockRepo    *repository.ScopeBlockRepository
	progressRepo      *repository.ProgressRepository
	authMiddleware    *middleware.AuthMiddleware
	validate          *validator.Validate
}

// New creates a new Handler instance with all dependencies.
func New(pool *pgxpool.Pool, notifier notify.Notifier) *Handler {
	// Create repositories
	taskRepo := repository.NewTaskRepository(pool)
	assignmentRepo := repository.NewTaskAssignmentRepository(pool)
	trackRepo := repository.NewTrackRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	scopeBlockRepo := repository.NewScopeBlockRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// Create services
	aggregator := service.NewAggregator(scopeBlockRepo, statsRepo, progressRepo, notifier)
	audit := service.NewAuditWriter(auditRepo)
	taskService := service.NewTaskService(pool, taskRepo, assignmentRepo, trackRepo, userRepo, scopeBlockRepo, aggregator, audit, notifier)
	scopeBlockService := service.NewScopeBlockService(scopeBlockRepo, trackRepo, userRepo)

	// Create middleware
	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	return &Handler{
		pool:              pool,
		taskService:       taskService,
		scopeBlockService: scopeBlockService,
		aggregator:        aggregator,
		taskRepo:          taskRepo,
		assignmentRepo:    assignmentRepo,
		auditRepo:         auditRepo,
		scopeBlockRepo:    scopeBlockRepo,
		progressRepo:      progressRepo,
		authMiddleware:    authMiddleware,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	auth := func(fn http.HandlerFunc) http.Handler {
		return h.authMiddleware.Authenticate(fn)
	}

	// Tasks
	mux.Handle("GET /api/v1/tasks", auth(h.handleListTasks))
	mux.Handle("POST /api/v1/tasks", auth(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", auth(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}", auth(h.handleUpdateTask))
	mux.Handle("DELETE /api/v1/tasks/{id}", auth(h.handleDeleteTask))
	mux.Handle("PATCH /api/v1/tasks/{id}/status", auth(h.handleChangeStatus))
	mux.Handle("POST /api/v1/tasks/{id}/assign", auth(h.handleAssignUsers))
	mux.Handle("POST /api/v1/tasks/{id}/audit", auth(h.handleSubObjectChange))
	mux.Handle("POST /api/v1/tasks/{id}/files", auth(h.handleAttachFile))
	mux.Handle("DELETE /api/v1/tasks/{id}/files/{name}", auth(h.handleRemoveFile))

	// Scope blocks
	mux.Handle("POST /api/v1/scope-blocks", auth(h.handleCreateScopeBlock))
	mux.Handle("PATCH /api/v1/scope-blocks/{id}", auth(h.handleUpdateScopeBlock))
	mux.Handle("PATCH /api/v1/scope-blocks/{id}/progress", auth(h.handleScopeBlockProgress))
	mux.Handle("GET /api/v1/tracks/{id}/scope-blocks", auth(h.handleListScopeBlocks))
	mux.Handle("POST /api/v1/tracks/{id}/scope-blocks/reorder", auth(h.handleReorderScopeBlocks))

	// Progress summaries and history
	mux.Handle("GET /api/v1/tracks/{id}/progress", auth(h.handleTrackProgress))
	mux.Handle("GET /api/v1/employees/{id}/progress", auth(h.handleEmployeeProgress))
	mux.Handle("GET /api/v1/progress/{entity_type}/{entity_id}/events", auth(h.handleProgressEvents))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// decodeAndValidate decodes the request body into dst and runs struct
// validation. Returns false with the error already written to the client.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

// extractID extracts and validates a UUID path parameter.
// Returns (id, true) if valid, ("", false) if invalid (error already sent to client).
func extractID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := r.PathValue(param)
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", param+" is required")
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", param+" must be a valid UUID")
		return "", false
	}

	return id, true
}

// splitAndTrim splits a comma-separated value, dropping empty parts.
func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

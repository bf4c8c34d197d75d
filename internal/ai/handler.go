package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/history"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
	"github.com/Lideeyah/DevAssist-sub000/internal/auth"
)

type Handler struct {
	svc      *Service
	recorder *history.Recorder
	validate *validator.Validate
}

func NewHandler(svc *Service, recorder *history.Recorder) *Handler {
	return &Handler{
		svc:      svc,
		recorder: recorder,
		validate: validator.New(),
	}
}

// Generate handles POST /ai/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.svc.Generate(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The client is gone; the record and accounting are already
			// finalized, nothing useful can be written back.
			return
		}
		var appErr *api.AppError
		if !errors.As(err, &appErr) {
			slog.Error("generation pipeline", "error", err)
			err = api.ErrInternalServer
		}
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

// Usage handles GET /ai/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	usage, err := h.svc.UsageForUser(r.Context(), userID)
	if err != nil {
		slog.Error("reading quota usage", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, usage)
}

// ListInteractions handles GET /ai/interactions.
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(q.Get("limit"), 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	filter := history.ListFilter{
		Mode:      q.Get("mode"),
		SinceDays: queryInt(q.Get("since_days"), 0),
	}
	if p := q.Get("project_id"); p != "" {
		projectID, err := uuid.Parse(p)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid project ID"))
			return
		}
		filter.ProjectID = &projectID
	}

	summaries, total, err := h.recorder.ListForUser(r.Context(), userID, filter, limit, (page-1)*limit)
	if err != nil {
		slog.Error("listing interactions", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, summaries, int64(total), page, limit)
}

// GetInteraction handles GET /ai/interactions/{interactionID}.
func (h *Handler) GetInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "interactionID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid interaction ID"))
		return
	}

	in, err := h.recorder.GetForUser(r.Context(), id, userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, in)
}

// DeleteInteraction handles DELETE /ai/interactions/{interactionID}.
func (h *Handler) DeleteInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "interactionID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid interaction ID"))
		return
	}

	if err := h.recorder.DeleteForUser(r.Context(), id, userID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSONMessage(w, http.StatusOK, "interaction deleted successfully")
}

// Stats handles GET /ai/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sinceDays := queryInt(r.URL.Query().Get("since_days"), 0)
	stats, err := h.recorder.StatsForUser(r.Context(), userID, sinceDays)
	if err != nil {
		slog.Error("aggregating interaction stats", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, stats)
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

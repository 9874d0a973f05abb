// Package httpapi provides the REST HTTP adapter for the workflow engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iurijampa/STAMPBLUE-sub002/internal/app"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	engine *app.Engine
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the workflow engine.
func NewHandler(engine *app.Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes registers every versioned API route on one chi subrouter.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/activities", func(r chi.Router) {
		r.Post("/", h.handleCreateActivity)
		r.Route("/{activityID}", func(r chi.Router) {
			r.Get("/", h.handleGetActivity)
			r.Delete("/", h.handleDeleteActivity)
			r.Post("/advance", h.handleAdvance)
			r.Post("/revert", h.handleRevert)
		})
	})

	r.Route("/departments/{department}", func(r chi.Router) {
		r.Get("/activities", h.handleDepartmentActivities)
		r.Get("/history", h.handleDepartmentHistory)
	})

	r.Get("/departments", h.handleListDepartments)
	r.Get("/stats", h.handleStats)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.handleRegisterUser)
		r.Get("/{userID}/notifications", h.handleListNotifications)
		r.Post("/{userID}/notifications/{notificationID}/read", h.handleMarkNotificationRead)
	})

	return r
}

// createActivityRequest carries the creation payload for POST `/activities`.
type createActivityRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ImageRef    string     `json:"image_ref"`
	Quantity    int        `json:"quantity"`
	Client      string     `json:"client"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
}

// transitionRequest carries the shared payload for advance and revert calls.
type transitionRequest struct {
	Department string `json:"department"`
	Actor      string `json:"actor"`
	Notes      string `json:"notes"`
}

type registerUserRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

func (h *Handler) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	activity, err := h.engine.CreateActivity(r.Context(), app.CreateActivityInput{
		Title:       req.Title,
		Description: req.Description,
		ImageRef:    req.ImageRef,
		Quantity:    req.Quantity,
		Client:      req.Client,
		Priority:    domain.Priority(req.Priority),
		Deadline:    req.Deadline,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activityView(activity))
}

func (h *Handler) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.engine.GetActivity(r.Context(), chi.URLParam(r, "activityID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activityView(activity))
}

func (h *Handler) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteActivity(r.Context(), chi.URLParam(r, "activityID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	record, err := h.engine.Advance(r.Context(), chi.URLParam(r, "activityID"),
		domain.NormalizeDepartment(req.Department), req.Actor, req.Notes)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressView(record))
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	record, err := h.engine.Revert(r.Context(), chi.URLParam(r, "activityID"),
		domain.NormalizeDepartment(req.Department), req.Actor, req.Notes)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressView(record))
}

func (h *Handler) handleDepartmentActivities(w http.ResponseWriter, r *http.Request) {
	department := domain.NormalizeDepartment(chi.URLParam(r, "department"))
	activities, err := h.engine.ListActiveForDepartment(r.Context(), department)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]activityPayload, 0, len(activities))
	for _, a := range activities {
		views = append(views, activityView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": views})
}

func (h *Handler) handleDepartmentHistory(w http.ResponseWriter, r *http.Request) {
	department := domain.NormalizeDepartment(chi.URLParam(r, "department"))
	entries, err := h.engine.ListCompletedForDepartment(r.Context(), department)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]historyPayload, 0, len(entries))
	for _, entry := range entries {
		views = append(views, historyPayload{
			Activity: activityView(entry.Activity),
			Progress: progressView(entry.Progress),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": views})
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"departments": h.engine.Sequence().All()})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetStats(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	user, err := h.engine.RegisterUser(r.Context(), app.RegisterUserInput{
		Name:       req.Name,
		Department: domain.NormalizeDepartment(req.Department),
		Role:       domain.Role(req.Role),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userView(user))
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.engine.ListNotifications(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]notificationPayload, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, notificationView(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": views})
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.engine.MarkNotificationRead(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "notificationID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activityPayload is the JSON projection of one activity.
type activityPayload struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ImageRef    string     `json:"image_ref,omitempty"`
	Quantity    int        `json:"quantity"`
	Client      string     `json:"client"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type transitionPayload struct {
	Kind  string    `json:"kind"`
	Actor string    `json:"actor"`
	Notes string    `json:"notes,omitempty"`
	At    time.Time `json:"at"`
}

type progressPayload struct {
	ID          string              `json:"id"`
	ActivityID  string              `json:"activity_id"`
	Department  string              `json:"department"`
	Seq         int                 `json:"seq"`
	Status      string              `json:"status"`
	Transitions []transitionPayload `json:"transitions"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type historyPayload struct {
	Activity activityPayload `json:"activity"`
	Progress progressPayload `json:"progress"`
}

type notificationPayload struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ActivityID string    `json:"activity_id"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

type userPayload struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

func activityView(a domain.Activity) activityPayload {
	return activityPayload{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		ImageRef:    a.ImageRef,
		Quantity:    a.Quantity,
		Client:      a.Client,
		Priority:    string(a.Priority),
		Deadline:    a.Deadline,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func progressView(p domain.ProgressRecord) progressPayload {
	transitions := make([]transitionPayload, 0, len(p.Transitions))
	for _, tr := range p.Transitions {
		transitions = append(transitions, transitionPayload{
			Kind:  string(tr.Kind),
			Actor: tr.Actor,
			Notes: tr.Notes,
			At:    tr.At,
		})
	}
	return progressPayload{
		ID:          p.ID,
		ActivityID:  p.ActivityID,
		Department:  string(p.Department),
		Seq:         p.Seq,
		Status:      string(p.Status),
		Transitions: transitions,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func notificationView(n domain.Notification) notificationPayload {
	return notificationPayload{
		ID:         n.ID,
		UserID:     n.UserID,
		ActivityID: n.ActivityID,
		Message:    n.Message,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt,
	}
}

func userView(u domain.User) userPayload {
	return userPayload{
		ID:         u.ID,
		Name:       u.Name,
		Department: string(u.Department),
		Role:       string(u.Role),
		CreatedAt:  u.CreatedAt,
	}
}

// writeErrorFrom maps engine errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, domain.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrStateConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "state_conflict",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: decode request body: %s", domain.ErrValidation, strings.TrimSpace(err.Error()))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode request body: trailing content", domain.ErrValidation)
	}
	return nil
}

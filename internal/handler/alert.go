package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forgo/vitals/internal/model"
)

// Alert list bounds
const (
	DefaultAlertLimit = 50
	MaxAlertLimit     = 200
)

// AlertRepository interface for the handler
type AlertRepository interface {
	Create(ctx context.Context, alert *model.Alert) error
	GetByID(ctx context.Context, id string) (*model.Alert, error)
	ListOpen(ctx context.Context, limit int) ([]*model.Alert, error)
	CountOpen(ctx context.Context) (int, error)
	Acknowledge(ctx context.Context, ids []string) error
}

// AlertHandler handles alert HTTP requests
type AlertHandler struct {
	alertRepo AlertRepository
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertRepo AlertRepository) *AlertHandler {
	return &AlertHandler{alertRepo: alertRepo}
}

// List handles GET /v1/alerts - list unacknowledged alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := DefaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxAlertLimit {
			WriteError(w, model.NewValidationError([]model.FieldError{
				{Field: "limit", Message: "limit must be between 1 and 200"},
			}))
			return
		}
		limit = n
	}

	alerts, err := h.alertRepo.ListOpen(ctx, limit)
	if err != nil {
		h.fail(ctx, w, err, "list alerts")
		return
	}
	total, err := h.alertRepo.CountOpen(ctx)
	if err != nil {
		h.fail(ctx, w, err, "count alerts")
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}

	WriteCollection(w, http.StatusOK, alerts, total)
}

// Get handles GET /v1/alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if !strings.HasPrefix(id, "alert:") {
		id = "alert:" + id
	}

	alert, err := h.alertRepo.GetByID(ctx, id)
	if err != nil {
		h.fail(ctx, w, err, "get alert")
		return
	}
	if alert == nil {
		WriteError(w, model.NewNotFoundError("alert"))
		return
	}

	WriteData(w, http.StatusOK, alert)
}

// Create handles POST /v1/alerts - raise an alert
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateAlertRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		WriteError(w, model.NewValidationError(errors))
		return
	}

	alert := &model.Alert{
		Key:      strings.TrimSpace(req.Key),
		Source:   strings.TrimSpace(req.Source),
		Severity: req.Severity,
		Message:  strings.TrimSpace(req.Message),
	}
	if err := h.alertRepo.Create(ctx, alert); err != nil {
		h.fail(ctx, w, err, "create alert")
		return
	}

	WriteData(w, http.StatusCreated, alert)
}

// Acknowledge handles POST /v1/alerts/ack - acknowledge alerts atomically
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.AcknowledgeAlertsRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		WriteError(w, model.NewValidationError(errors))
		return
	}

	if err := h.alertRepo.Acknowledge(ctx, req.IDs); err != nil {
		h.fail(ctx, w, err, "acknowledge alerts")
		return
	}

	WriteNoContent(w)
}

func (h *AlertHandler) fail(ctx context.Context, w http.ResponseWriter, err error, op string) {
	zerolog.Ctx(ctx).Error().Err(err).Str("op", op).Msg("alert request failed")
	WriteError(w, MapDatabaseError(err))
}

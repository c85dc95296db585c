// Package handler exposes the attendance operations over HTTP. It owns
// request parsing and response shaping only; lifecycle rules live in the
// service and store.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/service"
	"timeclock/pkg/platform/httputil"
	"timeclock/pkg/requestcontext"

	id "timeclock/pkg/domain"
	dErrors "timeclock/pkg/domain-errors"
)

// defaultRangeDays is the history and stats window when the caller gives no
// explicit range.
const defaultRangeDays = 30

// AttendanceService is the surface the handler needs from the service layer.
type AttendanceService interface {
	CheckIn(ctx context.Context) (*models.Record, error)
	CheckOut(ctx context.Context) (*models.Record, error)
	Approve(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	Today(ctx context.Context) (*models.Record, error)
	History(ctx context.Context, from, to time.Time) ([]*models.Record, error)
	GetStats(ctx context.Context, from, to time.Time) (*service.Stats, error)
}

type Handler struct {
	service AttendanceService
	logger  *slog.Logger
}

func New(svc AttendanceService, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the attendance routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.Post("/check-in", h.HandleCheckIn)
		r.Post("/check-out", h.HandleCheckOut)
		r.Get("/today", h.HandleToday)
		r.Get("/history", h.HandleHistory)
		r.Get("/stats", h.HandleStats)
		r.Post("/{recordID}/approve", h.HandleApprove)
	})
}

func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.CheckIn(r.Context())
	if err != nil {
		h.writeError(w, r, "check-in", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.CheckOut(r.Context())
	if err != nil {
		h.writeError(w, r, "check-out", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) HandleToday(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Today(r.Context())
	if err != nil {
		h.writeError(w, r, "today", err)
		return
	}
	if record == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no attendance record for today"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.History(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, "history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(records))
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.service.GetStats(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, "stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Approve(r.Context(), recordID)
	if err != nil {
		h.writeError(w, r, "approve", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

// parseRange reads the from/to query dates, defaulting to the trailing
// window ending today when both are absent.
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")

	now := requestcontext.Now(r.Context())
	if fromParam == "" && toParam == "" {
		return now.AddDate(0, 0, -defaultRangeDays), now, nil
	}
	if fromParam == "" || toParam == "" {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "from and to must be provided together")
	}

	from, err := time.Parse(dateFormat, fromParam)
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "from must be formatted as YYYY-MM-DD")
	}
	to, err := time.Parse(dateFormat, toParam)
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "to must be formatted as YYYY-MM-DD")
	}
	return from, to, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	code := dErrors.CodeOf(err)
	level := slog.LevelWarn
	if code == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "attendance request failed",
		"operation", operation,
		"code", code,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, err)
}

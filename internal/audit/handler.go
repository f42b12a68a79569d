package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-erp/atlas-access/internal/platform/httpx"
)

// Handler serves the read-only timeline endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the timeline route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit", h.handleTimeline)
}

type timelineResponse struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseTimelineFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := result.Rows
	if rows == nil {
		rows = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{Rows: rows, Paging: result.Paging})
}

func parseTimelineFilters(r *http.Request) (TimelineFilters, error) {
	query := r.URL.Query()
	filters := TimelineFilters{
		Action:  query.Get("action"),
		Outcome: query.Get("outcome"),
	}
	var err error
	if filters.From, err = parseTimeParam(query.Get("from")); err != nil {
		return filters, err
	}
	if filters.To, err = parseTimeParam(query.Get("to")); err != nil {
		return filters, err
	}
	if raw := query.Get("actor_id"); raw != "" {
		if filters.ActorID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return filters, err
		}
	}
	if raw := query.Get("page"); raw != "" {
		if filters.Page, err = strconv.Atoi(raw); err != nil {
			return filters, err
		}
	}
	if raw := query.Get("page_size"); raw != "" {
		if filters.PageSize, err = strconv.Atoi(raw); err != nil {
			return filters, err
		}
	}
	return filters, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/keycal/keycal/internal/domain"
	"github.com/keycal/keycal/internal/ics"
)

// EventSource produces a fresh event batch per call.
type EventSource interface {
	Generate() ([]domain.Event, error)
}

// CalendarHandler serves generated events.
type CalendarHandler struct {
	events EventSource
	now    func() time.Time
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(events EventSource) *CalendarHandler {
	return &CalendarHandler{events: events, now: time.Now}
}

// List returns a new batch as a JSON array.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Generate()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ICS returns a new batch as an iCalendar document.
func (h *CalendarHandler) ICS(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Generate()
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, events, h.now()); err != nil {
		writeFailure(w, r, fmt.Errorf("export calendar: %w", err))
		return
	}

	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

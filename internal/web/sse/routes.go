package sse

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/legaldb/caseanalyzer/internal/events"
)

// RegisterRoutes registers a new handler at /events on r.
func RegisterRoutes(r chi.Router, bus *events.EventBus) *Handler {
	h := NewHandler(bus)
	r.Get("/events", h.ServeHTTP)
	return h
}

// RegisterRoutesWithHandler registers a pre-configured handler.
func RegisterRoutesWithHandler(r chi.Router, h *Handler) {
	r.Get("/events", h.ServeHTTP)
}

// HandlerFunc returns the SSE handler as http.HandlerFunc.
func (h *Handler) HandlerFunc() http.HandlerFunc {
	return h.ServeHTTP
}

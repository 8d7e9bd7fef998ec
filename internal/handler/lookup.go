package handler

import (
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataontap/DeviceInsights-sub000/internal/lookup"
	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// LookupHandler serves the public lookup endpoints. Every route it serves is
// wrapped by the request gateway, so by the time a request lands here it is
// authenticated, rate-limited, and screened against the deny list.
type LookupHandler struct {
	svc *lookup.Service
}

func NewLookupHandler(svc *lookup.Service) *LookupHandler {
	return &LookupHandler{svc: svc}
}

// CheckCompatibility handles GET /device/{imei}/compatibility?location=.
func (h *LookupHandler) CheckCompatibility(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, "MissingParameter", "location query parameter is required")
		return
	}

	result, err := h.svc.CheckCompatibility(r.Context(), imei, location)
	if err != nil {
		if errors.Is(err, lookup.ErrInvalidIMEI) {
			writeError(w, http.StatusBadRequest, "InvalidDeviceID", "device identifier must be a valid 15-digit IMEI")
			return
		}
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Carriers handles GET /carriers?location=.
func (h *LookupHandler) Carriers(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, "MissingParameter", "location query parameter is required")
		return
	}

	carriers, cached, err := h.svc.Carriers(r.Context(), location)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": location,
		"carriers": carriers,
		"cached":   cached,
	})
}

// Pricing handles GET /pricing?location=.
func (h *LookupHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, "MissingParameter", "location query parameter is required")
		return
	}

	plans, cached, err := h.svc.Pricing(r.Context(), location)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": location,
		"plans":    plans,
		"cached":   cached,
	})
}

// Isp handles GET /network/isp?ip=.
func (h *LookupHandler) Isp(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if net.ParseIP(ip) == nil {
		writeError(w, http.StatusBadRequest, "InvalidParameter", "ip query parameter must be a valid IP address")
		return
	}

	info, cached, err := h.svc.Isp(r.Context(), ip)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isp":    info,
		"cached": cached,
	})
}

// Voice handles POST /voice with {"text": ..., "voice": ...}.
func (h *LookupHandler) Voice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}
	if err := readJSON(r, &body); err != nil || body.Text == "" {
		writeError(w, http.StatusBadRequest, "InvalidBody", "body must be JSON with a non-empty text field")
		return
	}
	if body.Voice == "" {
		body.Voice = "default"
	}

	clip, cached, err := h.svc.Voice(r.Context(), body.Text, body.Voice)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"voice":         clip.Voice,
		"audio_base64":  clip.Audio,
		"content_type":  clip.ContentType,
		"cached":        cached,
	})
}

// writeUpstreamError maps collaborator failures onto 502-equivalent
// responses with the stable upstream error codes.
func writeUpstreamError(w http.ResponseWriter, err error) {
	code := model.CodeUpstreamFailure
	if errors.Is(err, lookup.ErrUpstreamTimeout) {
		code = model.CodeUpstreamTimeout
	}
	writeError(w, http.StatusBadGateway, code, "upstream lookup provider unavailable")
}

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/llm"
	"github.com/c360studio/nomadplan/model"
	"github.com/c360studio/nomadplan/prompts"
	"github.com/c360studio/nomadplan/tripapi"
)

// ----------------------------------------------------------------------------
// POST /api/intent
// ----------------------------------------------------------------------------

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req tripapi.IntentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "Missing prompt")
		return
	}

	resp, err := s.completer.Complete(r.Context(), llm.Request{
		Capability: string(model.CapabilityIntent),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.IntentSystemPrompt()},
			{Role: "user", Content: prompt},
		},
		JSONMode: true,
	})
	if err != nil {
		s.logger.Warn("Intent completion failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	obj, err := llm.DecodeObject(resp.Content)
	if err != nil {
		s.logger.Warn("Intent model returned invalid JSON",
			"request_id", resp.RequestID,
			"model", resp.Model)
		writeJSON(w, http.StatusBadGateway, tripapi.ErrorResponse{
			Error: "Model returned invalid JSON",
			Raw:   strings.TrimSpace(resp.Content),
		})
		return
	}

	writeJSON(w, http.StatusOK, tripapi.IntentResponse{Intent: intent.FromRaw(obj)})
}

// ----------------------------------------------------------------------------
// POST /api/itinerary
// ----------------------------------------------------------------------------

func (s *Server) handleItinerary(w http.ResponseWriter, r *http.Request) {
	var req tripapi.ItineraryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.completer.Complete(r.Context(), llm.Request{
		Capability: string(model.CapabilityItinerary),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.ItinerarySystemPrompt()},
			{Role: "user", Content: prompts.ItineraryUserPrompt(req.Intent, req.WeatherByDay)},
		},
		JSONMode: true,
	})
	if err != nil {
		s.logger.Warn("Itinerary completion failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	obj, err := llm.DecodeObject(resp.Content)
	if err != nil {
		s.logger.Warn("Itinerary model returned invalid JSON",
			"request_id", resp.RequestID,
			"model", resp.Model)
		writeJSON(w, http.StatusInternalServerError, tripapi.ErrorResponse{
			Error: "Failed to generate itinerary",
			Raw:   strings.TrimSpace(resp.Content),
		})
		return
	}
	// Some models wrap the days in an "itinerary" key.
	if nested, ok := obj["itinerary"].(map[string]any); ok {
		obj = nested
	}

	writeJSON(w, http.StatusOK, tripapi.ItineraryResponse{Itinerary: itinerary.FromRaw(obj)})
}

// ----------------------------------------------------------------------------
// POST /api/chat
// ----------------------------------------------------------------------------

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req tripapi.ChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "Missing message")
		return
	}

	resp, err := s.completer.Complete(r.Context(), llm.Request{
		Capability: string(model.CapabilityChat),
		Messages: []llm.Message{
			{Role: "system", Content: prompts.ChatSystemPrompt()},
			{Role: "user", Content: prompts.ChatUserPrompt(message, req.Context.Intent, req.Context.Weather, req.Context.Itinerary)},
		},
	})
	if err != nil {
		s.logger.Warn("Chat completion failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text := strings.TrimSpace(resp.Content)
	reply := tripapi.ChatReply{Reply: text}
	if obj, err := llm.DecodeObject(text); err == nil {
		reply = tripapi.ChatReplyFromObject(obj, text)
	}

	writeJSON(w, http.StatusOK, tripapi.ChatResponse{
		Reply:          reply.Reply,
		ItineraryPatch: reply.Patch,
	})
}

// ----------------------------------------------------------------------------
// GET /api/geocode?q=
// ----------------------------------------------------------------------------

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Missing q")
		return
	}

	point, err := s.geocoder.Lookup(r.Context(), q)
	if err != nil {
		var statusErr *geocode.StatusError
		switch {
		case errors.Is(err, geocode.ErrNotFound):
			writeError(w, http.StatusNotFound, "No results")
		case errors.As(err, &statusErr):
			writeJSON(w, http.StatusBadGateway, tripapi.ErrorResponse{
				Error:  "Geocoding failed",
				Status: statusErr.StatusCode,
			})
		default:
			s.logger.Warn("Geocode lookup failed", "query", q, "error", err)
			writeError(w, http.StatusBadGateway, "Geocoding failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, point)
}

// ----------------------------------------------------------------------------
// GET /health
// ----------------------------------------------------------------------------

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                          `json:"status"`
	Endpoints map[string]model.EndpointHealth `json:"endpoints,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.health != nil {
		resp.Endpoints = s.health.HealthReport()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Debug("Rejected request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeJSON marshals v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, tripapi.ErrorResponse{Error: msg})
}

package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/nomadplan/gateway"
	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/llm"
	"github.com/c360studio/nomadplan/llm/testutil"
	"github.com/c360studio/nomadplan/metrics"
	"github.com/c360studio/nomadplan/model"
	"github.com/c360studio/nomadplan/tripapi"
)

type fakeGeocoder struct {
	point geocode.Point
	err   error
}

func (f fakeGeocoder) Lookup(_ context.Context, _ string) (geocode.Point, error) {
	return f.point, f.err
}

func respond(content string) *testutil.MockCompleter {
	return &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: content, Model: "test-model", RequestID: "req-1"}},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) tripapi.ErrorResponse {
	t.Helper()
	var out tripapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestIntent_Success(t *testing.T) {
	mock := respond("```json\n{\"from\": \"Boston\", \"to\": \"Montreal\", \"days\": 3, \"people\": \"two\", \"prefs\": [\"food\", \"\"]}\n```")
	h := gateway.New(mock).Handler()

	rec := do(t, h, http.MethodPost, tripapi.IntentPath, `{"prompt":"  Boston to Montreal for 3 days  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out tripapi.IntentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Intent.To)
	assert.Equal(t, "Montreal", *out.Intent.To)
	require.NotNil(t, out.Intent.Days)
	assert.Equal(t, 3, *out.Intent.Days)
	assert.Nil(t, out.Intent.People, "string count is not coerced")
	assert.Equal(t, []string{"food"}, out.Intent.Prefs)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, string(model.CapabilityIntent), req.Capability)
	assert.True(t, req.JSONMode, "intent output is JSON only")
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "Boston to Montreal for 3 days", req.Messages[1].Content)
}

func TestIntent_MissingPrompt(t *testing.T) {
	mock := respond("{}")
	h := gateway.New(mock).Handler()

	for _, body := range []string{`{}`, `{"prompt":"   "}`} {
		rec := do(t, h, http.MethodPost, tripapi.IntentPath, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing prompt", decodeError(t, rec).Error)
	}
	assert.Equal(t, 0, mock.GetCallCount())
}

func TestIntent_InvalidModelJSON(t *testing.T) {
	h := gateway.New(respond("Sorry, I can't help with that.")).Handler()

	rec := do(t, h, http.MethodPost, tripapi.IntentPath, `{"prompt":"somewhere warm"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Model returned invalid JSON", body.Error)
	assert.Equal(t, "Sorry, I can't help with that.", body.Raw)
}

func TestIntent_CompletionError(t *testing.T) {
	mock := &testutil.MockCompleter{Err: errors.New("all endpoints failed")}
	h := gateway.New(mock).Handler()

	rec := do(t, h, http.MethodPost, tripapi.IntentPath, `{"prompt":"Paris"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "all endpoints failed", decodeError(t, rec).Error)
}

func TestInvalidBody(t *testing.T) {
	mock := respond("{}")
	h := gateway.New(mock).Handler()

	for _, path := range []string{tripapi.IntentPath, tripapi.ItineraryPath, tripapi.ChatPath} {
		rec := do(t, h, http.MethodPost, path, `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Invalid request body", decodeError(t, rec).Error, path)
	}
	assert.Equal(t, 0, mock.GetCallCount())
}

func TestItinerary_Success(t *testing.T) {
	mock := respond(`{
		"1": [{"time": "09:00", "period": "morning", "activity": "Old Port walk", "location": "Old Montreal", "detail": "Start early"}],
		"2": [{"time": "19:30", "period": "evening", "activity": "Dinner", "location": "Plateau", "detail": "Book ahead", "estCost": 80}],
		"notes": "not a day"
	}`)
	h := gateway.New(mock).Handler()

	rec := do(t, h, http.MethodPost, tripapi.ItineraryPath,
		`{"intent":{"to":"Montreal","days":2},"weatherByDay":{"1":{"condition":"rain"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out tripapi.ItineraryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []int{1, 2}, out.Itinerary.Days())
	assert.Equal(t, "Old Port walk", out.Itinerary["1"][0].Activity)
	require.NotNil(t, out.Itinerary["2"][0].EstCost)
	assert.InDelta(t, 80.0, *out.Itinerary["2"][0].EstCost, 1e-9)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, string(model.CapabilityItinerary), req.Capability)
	assert.True(t, req.JSONMode)
	assert.Contains(t, req.Messages[1].Content, `"1"..."2"`)
	assert.Contains(t, req.Messages[1].Content, "rain")
}

func TestItinerary_WrappedAndEmpty(t *testing.T) {
	h := gateway.New(respond(`{"itinerary": {"1": [{"activity": "Museum"}]}}`)).Handler()
	rec := do(t, h, http.MethodPost, tripapi.ItineraryPath, `{"intent":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out tripapi.ItineraryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Museum", out.Itinerary["1"][0].Activity)

	h = gateway.New(respond(`{}`)).Handler()
	rec = do(t, h, http.MethodPost, tripapi.ItineraryPath, `{"intent":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"itinerary":{}}`, rec.Body.String())
}

func TestItinerary_Failures(t *testing.T) {
	h := gateway.New(&testutil.MockCompleter{Err: errors.New("timeout")}).Handler()
	rec := do(t, h, http.MethodPost, tripapi.ItineraryPath, `{"intent":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "timeout", decodeError(t, rec).Error)

	h = gateway.New(respond("no json here")).Handler()
	rec = do(t, h, http.MethodPost, tripapi.ItineraryPath, `{"intent":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate itinerary", decodeError(t, rec).Error)
}

func TestChat_ReplyWithPatch(t *testing.T) {
	mock := respond(`{"reply": "Moved the museum to day 2.", "itineraryPatch": {"2": [{"time": "10:00", "activity": "Museum"}]}}`)
	h := gateway.New(mock).Handler()

	rec := do(t, h, http.MethodPost, tripapi.ChatPath,
		`{"message":" move the museum ","context":{"intent":{"to":"Montreal"},"itinerary":{"1":[{"activity":"Museum"}]}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out tripapi.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Moved the museum to day 2.", out.Reply)
	require.Contains(t, out.ItineraryPatch, "2")
	assert.Equal(t, "Museum", out.ItineraryPatch["2"][0].Activity)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, string(model.CapabilityChat), req.Capability)
	user := req.Messages[1].Content
	assert.Contains(t, user, `INTENT: {"to":"Montreal"}`)
	assert.Contains(t, user, "WEATHER: {}")
	assert.True(t, strings.HasSuffix(user, "USER MESSAGE:\nmove the museum"))
}

func TestChat_PlainTextReply(t *testing.T) {
	h := gateway.New(respond("  Bring an umbrella on day 2.  ")).Handler()

	rec := do(t, h, http.MethodPost, tripapi.ChatPath, `{"message":"weather?","context":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"Bring an umbrella on day 2."}`, rec.Body.String())
}

func TestChat_NonObjectPatchDropped(t *testing.T) {
	h := gateway.New(respond(`{"reply": "ok", "itineraryPatch": "none"}`)).Handler()

	rec := do(t, h, http.MethodPost, tripapi.ChatPath, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"ok"}`, rec.Body.String())
}

func TestChat_MissingMessage(t *testing.T) {
	mock := respond("{}")
	h := gateway.New(mock).Handler()

	rec := do(t, h, http.MethodPost, tripapi.ChatPath, `{"message":"  ","context":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing message", decodeError(t, rec).Error)
	assert.Equal(t, 0, mock.GetCallCount())
}

func TestGeocode(t *testing.T) {
	tests := []struct {
		name       string
		geocoder   fakeGeocoder
		query      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "found",
			geocoder:   fakeGeocoder{point: geocode.Point{Lat: 45.5, Lon: -73.56, Label: "Montréal, Québec, Canada"}},
			query:      "?q=Montreal",
			wantStatus: http.StatusOK,
			wantBody:   `{"lat":45.5,"lon":-73.56,"label":"Montréal, Québec, Canada"}`,
		},
		{
			name:       "missing query",
			query:      "?q=%20",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing q"}`,
		},
		{
			name:       "no results",
			geocoder:   fakeGeocoder{err: geocode.ErrNotFound},
			query:      "?q=Atlantis",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"No results"}`,
		},
		{
			name:       "upstream status",
			geocoder:   fakeGeocoder{err: &geocode.StatusError{StatusCode: 503}},
			query:      "?q=Boston",
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Geocoding failed","status":503}`,
		},
		{
			name:       "transport failure",
			geocoder:   fakeGeocoder{err: errors.New("dial tcp: refused")},
			query:      "?q=Boston",
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Geocoding failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := gateway.New(respond("{}"), gateway.WithGeocoder(tt.geocoder)).Handler()
			rec := do(t, h, http.MethodGet, tripapi.GeocodePath+tt.query, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestGeocode_DisabledWithoutGeocoder(t *testing.T) {
	h := gateway.New(respond("{}")).Handler()
	rec := do(t, h, http.MethodGet, tripapi.GeocodePath+"?q=Boston", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	registry := model.NewDefaultRegistry()
	registry.MarkEndpointFailure("broken")

	h := gateway.New(respond("{}"), gateway.WithHealthReporter(registry)).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out gateway.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out.Status)
	require.Contains(t, out.Endpoints, "broken")
	assert.Equal(t, 1, out.Endpoints["broken"].FailureCount)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := gateway.New(respond("{}"), gateway.WithMetrics(metrics.New(reg), reg)).Handler()

	do(t, h, http.MethodPost, tripapi.IntentPath, `{}`)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "nomadplan_http_requests_total")
	assert.Contains(t, body, `route="/api/intent"`)
	assert.Contains(t, body, `status="400"`)
}

func TestRateLimit(t *testing.T) {
	h := gateway.New(respond("{}"), gateway.WithRateLimit(0.001, 1)).Handler()

	first := do(t, h, http.MethodPost, tripapi.IntentPath, `{}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := do(t, h, http.MethodPost, tripapi.IntentPath, `{}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "Too many requests", decodeError(t, second).Error)

	health := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, health.Code, "health is not rate limited")
}

func TestCORSPreflight(t *testing.T) {
	h := gateway.New(respond("{}"), gateway.WithCORSOrigins("http://localhost:3000")).Handler()

	req := httptest.NewRequest(http.MethodOptions, tripapi.ChatPath, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoversFromPanic(t *testing.T) {
	mock := &testutil.MockCompleter{
		Handler: func(context.Context, llm.Request) (*llm.Response, error) {
			panic("boom")
		},
	}
	h := gateway.New(mock).Handler()

	rec := do(t, h, http.MethodPost, tripapi.IntentPath, `{"prompt":"Paris"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	httpadapter "github.com/couchcryptid/wildfire-risk-service/internal/adapter/http"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	"github.com/couchcryptid/wildfire-risk-service/internal/store"
	"github.com/couchcryptid/wildfire-risk-service/internal/synth"
)

const rows = 365

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.PredictionEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e domain.PredictionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (r *fakeReporter) CaptureError(_ context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *fakeReporter) Flush(time.Duration) {}

type fixture struct {
	srv      *httpadapter.Server
	pipeline *pipeline.Pipeline
	events   *fakePublisher
	reporter *fakeReporter
	dir      string
}

func newFixture(t *testing.T, forests ...string) *fixture {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	dir := t.TempDir()
	for _, f := range forests {
		require.NoError(t, synth.WriteForest(dir, f, rows, 1))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	s := store.New(store.Options{Dir: dir, Format: model.FormatJSON, Forests: forests}, logger, metrics)
	p := pipeline.New(s, logger, metrics)

	fx := &fixture{pipeline: p, events: &fakePublisher{}, reporter: &fakeReporter{}, dir: dir}
	fx.srv = httpadapter.NewServer(":0", p, httpadapter.Options{Events: fx.events, Reporter: fx.reporter}, logger)
	return fx
}

func (fx *fixture) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	fx.srv.ServeHTTP(rec, req)
	return rec
}

// historicalDay returns a row of the forest's table, moved into the form's
// year window, on which the base model predicts want.
func historicalDay(t *testing.T, forest string, want int) map[string]float64 {
	t.Helper()
	table := synth.Generate(forest, rows, 1)
	m := synth.Model(forest, domain.VariantBase)
	for _, row := range table.Rows {
		got, err := m.Predict(row)
		require.NoError(t, err)
		if got != want {
			continue
		}
		values := make(map[string]float64, len(table.Columns))
		for i, c := range table.Columns {
			values[c] = row[i]
		}
		values["year"] = 2026
		return values
	}
	t.Fatalf("no historical day with label %d", want)
	return nil
}

// apiValues turns a historical day into JSON request values. A nil override
// removes the control.
func apiValues(day map[string]float64, overrides map[string]any) map[string]any {
	values := make(map[string]any, len(day))
	for k, v := range day {
		values[k] = v
	}
	for k, v := range overrides {
		if v == nil {
			delete(values, k)
			continue
		}
		values[k] = v
	}
	return values
}

func predictBody(t *testing.T, smote bool, values any) io.Reader {
	t.Helper()
	b, err := json.Marshal(map[string]any{"smote": smote, "values": values})
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func formBody(values map[string]float64, extra url.Values) io.Reader {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
	}
	for k, v := range extra {
		form[k] = v
	}
	return strings.NewReader(form.Encode())
}

func TestHealthzReturns200(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzFollowsWarm(t *testing.T) {
	fx := newFixture(t, "Coconino")

	rec := fx.do(http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, fx.pipeline.Warm(context.Background(), true))
	rec = fx.do(http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(http.MethodGet, "/metrics", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListForests(t *testing.T) {
	fx := newFixture(t, "Coconino", "White Mountain")
	rec := fx.do(http.MethodGet, "/api/forests", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"forests":["Coconino","White Mountain"]}`, rec.Body.String())
}

func TestGetForm(t *testing.T) {
	fx := newFixture(t, "White Mountain")
	rec := fx.do(http.MethodGet, "/api/forests/White%20Mountain/form", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Forest   string `json:"forest"`
		Years    []int  `json:"years"`
		Controls []struct {
			Name   string `json:"name"`
			Widget string `json:"widget"`
		} `json:"controls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "White Mountain", body.Forest)
	assert.Equal(t, []int{2026, 2027, 2028}, body.Years)
	require.Len(t, body.Controls, len(synth.Columns))
	assert.Equal(t, "select", body.Controls[0].Widget)
	assert.Equal(t, "date", body.Controls[1].Widget)
}

func TestGetForm_UnknownForest(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(http.MethodGet, "/api/forests/Atlantis/form", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, fx.reporter.errs)
}

func TestPredictAPI(t *testing.T) {
	fx := newFixture(t, "Coconino")

	tests := []struct {
		name    string
		label   int
		level   string
		message string
	}{
		{"elevated", 1, "danger", "Elevated wildfire risk"},
		{"low", 0, "success", "Low wildfire risk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := historicalDay(t, "Coconino", tt.label)
			rec := fx.do(http.MethodPost, "/api/forests/Coconino/predict", predictBody(t, false, values), "application/json")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var body struct {
				Forest  string  `json:"forest"`
				Variant string  `json:"variant"`
				Label   int     `json:"label"`
				Prob    float64 `json:"probability"`
				Alert   struct {
					Level    string `json:"level"`
					Message  string `json:"message"`
					Emphasis bool   `json:"emphasis"`
				} `json:"alert"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Coconino", body.Forest)
			assert.Equal(t, "base", body.Variant)
			assert.Equal(t, tt.label, body.Label)
			assert.Equal(t, tt.level, body.Alert.Level)
			assert.Equal(t, tt.message, body.Alert.Message)
			assert.Equal(t, tt.label == 1, body.Alert.Emphasis)
		})
	}

	require.Len(t, fx.events.events, 2)
	assert.Equal(t, "Coconino", fx.events.events[0].Forest)
	assert.Len(t, fx.events.events[0].Features, len(synth.Columns))
	assert.Equal(t, 2026.0, fx.events.events[0].Features["year"])
}

func TestPredictAPI_DateStringsAndBooleans(t *testing.T) {
	fx := newFixture(t, "Tongass")
	values := apiValues(historicalDay(t, "Tongass", 0), map[string]any{"day_of_year": "2027-08-15", "year": 2027, "lightnings": true})
	body := predictBody(t, true, values)

	rec := fx.do(http.MethodPost, "/api/forests/Tongass/predict", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"variant":"smote"`)

	require.Len(t, fx.events.events, 1)
	e := fx.events.events[0]
	assert.Equal(t, domain.VariantSMOTE, e.Variant)
	assert.Equal(t, 227.0, e.Features["day_of_year"])
	assert.Equal(t, 1.0, e.Features["lightnings"])
	assert.Equal(t, time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC), e.PredictedAt)
}

func TestPredictAPI_Errors(t *testing.T) {
	fx := newFixture(t, "Coconino")
	day := historicalDay(t, "Coconino", 0)
	body := func(overrides map[string]any) string {
		b, err := json.Marshal(map[string]any{"values": apiValues(day, overrides)})
		require.NoError(t, err)
		return string(b)
	}

	tests := []struct {
		name   string
		forest string
		body   string
		want   int
	}{
		{"malformed json", "Coconino", `{"values":`, http.StatusBadRequest},
		{"unknown request field", "Coconino", `{"smote":false,"extra":1}`, http.StatusBadRequest},
		{"unsupported value", "Coconino", `{"values":{"TMAX_mean":[1]}}`, http.StatusBadRequest},
		{"unknown control", "Coconino", body(map[string]any{"humidity": 12}), http.StatusBadRequest},
		{"missing control", "Coconino", body(map[string]any{"fires_7d": nil}), http.StatusBadRequest},
		{"no values", "Coconino", `{}`, http.StatusBadRequest},
		{"year outside window", "Coconino", body(map[string]any{"year": 2025}), http.StatusBadRequest},
		{"date outside window", "Coconino", body(map[string]any{"day_of_year": "2030-05-01"}), http.StatusBadRequest},
		{"slider out of range", "Coconino", body(map[string]any{"TMAX_mean": 99}), http.StatusBadRequest},
		{"unknown forest", "Atlantis", `{}`, http.StatusNotFound},
		{"invalid forest name", `a%5Cb`, `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fx.do(http.MethodPost, "/api/forests/"+tt.forest+"/predict", strings.NewReader(tt.body), "application/json")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Empty(t, fx.events.events)
	assert.Empty(t, fx.reporter.errs)
}

func TestPredictAPI_OmittedControlIsNotDefaulted(t *testing.T) {
	fx := newFixture(t, "Coconino")
	values := apiValues(historicalDay(t, "Coconino", 1), map[string]any{"lightnings": nil})

	rec := fx.do(http.MethodPost, "/api/forests/Coconino/predict", predictBody(t, false, values), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "missing lightnings")
	assert.Empty(t, fx.events.events)
	assert.Empty(t, fx.reporter.errs)
}

func TestPredictAPI_SchemaMismatchIsReported(t *testing.T) {
	fx := newFixture(t, "Coconino")
	m := synth.Model("Coconino", domain.VariantBase)
	m.Features[5] = "lightning_strikes"
	require.NoError(t, synth.WriteModel(fx.dir, "Coconino", domain.VariantBase, m))

	values := apiValues(historicalDay(t, "Coconino", 0), nil)
	rec := fx.do(http.MethodPost, "/api/forests/Coconino/predict", predictBody(t, false, values), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, fx.reporter.errs, 1)
	assert.ErrorIs(t, fx.reporter.errs[0], domain.ErrSchemaMismatch)
	assert.Equal(t, "schema_mismatch", fx.reporter.tags[0]["kind"])
	assert.Equal(t, "POST /api/forests/{forest}/predict", fx.reporter.tags[0]["route"])
	assert.Empty(t, fx.events.events)
}

func TestPredictAPI_PublishFailureDoesNotFailRequest(t *testing.T) {
	fx := newFixture(t, "Coconino")
	fx.events.err = errors.New("broker unavailable")

	values := apiValues(historicalDay(t, "Coconino", 0), nil)
	rec := fx.do(http.MethodPost, "/api/forests/Coconino/predict", predictBody(t, false, values), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, fx.events.events, 1)
}

func TestDiagnosticsAPI(t *testing.T) {
	fx := newFixture(t, "Coconino")

	for _, tt := range []struct{ query, variant string }{{"", "base"}, {"?smote=1", "smote"}} {
		rec := fx.do(http.MethodGet, "/api/forests/Coconino/diagnostics"+tt.query, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Variant     string `json:"variant"`
			Samples     int    `json:"samples"`
			Importances []struct {
				Feature string `json:"feature"`
			} `json:"importances"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.variant, body.Variant)
		assert.Equal(t, rows, body.Samples)
		require.NotEmpty(t, body.Importances)
		assert.Equal(t, "TMAX_mean", body.Importances[0].Feature)
	}
}

func TestHomePage(t *testing.T) {
	fx := newFixture(t, "Coconino", "White Mountain")
	rec := fx.do(http.MethodGet, "/", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Coconino")
	assert.Contains(t, rec.Body.String(), "/forests/White%20Mountain/predict")

	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/nope", nil, "").Code)
}

func TestModelPage(t *testing.T) {
	fx := newFixture(t, "Coconino")

	rec := fx.do(http.MethodGet, "/forests/Coconino/model?smote=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Confusion matrix")
	assert.Contains(t, body, "<strong>smote</strong>")
	assert.Contains(t, body, "TMAX_mean")

	rec = fx.do(http.MethodGet, "/forests/Atlantis/model", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictPage(t *testing.T) {
	fx := newFixture(t, "Coconino")

	rec := fx.do(http.MethodGet, "/forests/Coconino/predict", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="TMAX_mean" type="range"`)
	assert.Contains(t, body, `type="date" value="2026-07-02" min="2026-01-01" max="2026-12-31"`)
	assert.Contains(t, body, `<option value="2026" selected>2026</option>`)
	assert.NotContains(t, body, "alert-")
}

func TestPredictSubmit(t *testing.T) {
	fx := newFixture(t, "Coconino")

	values := historicalDay(t, "Coconino", 1)
	rec := fx.do(http.MethodPost, "/forests/Coconino/predict", formBody(values, nil), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div class="alert alert-danger"><strong>Elevated wildfire risk</strong>`)
	assert.Contains(t, body, "base model")
	assert.Len(t, fx.events.events, 1)

	values = historicalDay(t, "Coconino", 0)
	rec = fx.do(http.MethodPost, "/forests/Coconino/predict", formBody(values, url.Values{"smote": {"1"}}), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smote model")
	assert.Contains(t, rec.Body.String(), `name="smote" value="1" checked`)
}

func TestPredictSubmit_YearChangeMovesDate(t *testing.T) {
	fx := newFixture(t, "Coconino")

	// Only the year select changed; the date input still holds its 2026 default.
	rec := fx.do(http.MethodPost, "/forests/Coconino/predict",
		strings.NewReader("year=2027&day_of_year=2026-07-02"), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="2027" selected>2027</option>`)
	assert.Contains(t, body, `type="date" value="2027-07-02" min="2027-01-01" max="2027-12-31"`)

	require.Len(t, fx.events.events, 1)
	assert.Equal(t, 2027.0, fx.events.events[0].Features["year"])
	assert.Equal(t, 183.0, fx.events.events[0].Features["day_of_year"])
}

func TestPredictSubmit_InvalidInputKeepsForm(t *testing.T) {
	fx := newFixture(t, "Coconino")

	rec := fx.do(http.MethodPost, "/forests/Coconino/predict",
		strings.NewReader("TMAX_mean=99&fires_7d=2"), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="error"`)
	assert.Contains(t, body, "TMAX_mean")
	assert.Contains(t, body, `value="99"`)
	assert.NotContains(t, body, "alert-")
	assert.Empty(t, fx.events.events)
}

func TestPredictSubmit_UnknownForest(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(http.MethodPost, "/forests/Atlantis/predict", strings.NewReader(""), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error 404")
}

func TestFeatureExport(t *testing.T) {
	fx := newFixture(t, "White Mountain")

	rec := fx.do(http.MethodGet, "/forests/White%20Mountain/features.xlsx", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="White Mountain_features.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))

	xf, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer xf.Close()
	got, err := xf.GetRows("Features")
	require.NoError(t, err)
	assert.Len(t, got, len(synth.Columns)+1)

	rec = fx.do(http.MethodGet, "/forests/Atlantis/features.xlsx", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

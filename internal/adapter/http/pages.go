package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/excel"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/evaluation"
	"github.com/couchcryptid/wildfire-risk-service/internal/form"
	"github.com/couchcryptid/wildfire-risk-service/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages map[string]*template.Template

var funcs = template.FuncMap{
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
	"pct":     func(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" },
	"fixed":   func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) },
	"pathEsc": url.PathEscape,
}

func loadPages() pages {
	p := make(pages)
	for _, name := range []string{"home", "model", "predict", "error"} {
		p[name] = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html"))
	}
	return p
}

type homeView struct {
	Forests []string
}

type modelView struct {
	Forest string
	SMOTE  bool
	Report *evaluation.Report
}

type controlView struct {
	form.Control
	Value string
	MinS  string
	MaxS  string
}

type predictView struct {
	Forest   string
	SMOTE    bool
	Years    []int
	Controls []controlView
	Alert    *render.Alert
	Pred     *domain.Prediction
	Error    string
}

type errorView struct {
	Status  int
	Message string
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages[name].Execute(&buf, data); err != nil {
		s.logger.Error("render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes()) //nolint:errcheck // client may have gone away
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := s.statusFor(r, err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "The prediction could not be computed."
	}
	s.renderPage(w, status, "error", errorView{Status: status, Message: msg})
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, http.StatusOK, "home", homeView{Forests: s.svc.Forests()})
}

func (s *Server) handleModelPage(w http.ResponseWriter, r *http.Request) {
	forest := r.PathValue("forest")
	smote := parseSMOTE(r.URL.Query().Get("smote"))
	report, err := s.svc.Diagnostics(r.Context(), forest, smote)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderPage(w, http.StatusOK, "model", modelView{Forest: forest, SMOTE: smote, Report: report})
}

func (s *Server) handlePredictPage(w http.ResponseWriter, r *http.Request) {
	forest := r.PathValue("forest")
	f, err := s.svc.Form(r.Context(), forest, domain.Now())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderPage(w, http.StatusOK, "predict", newPredictView(f, nil, parseSMOTE(r.URL.Query().Get("smote"))))
}

func (s *Server) handlePredictSubmit(w http.ResponseWriter, r *http.Request) {
	forest := r.PathValue("forest")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	smote := parseSMOTE(r.PostForm.Get("smote"))
	inputs := make(map[string]string, len(r.PostForm))
	for name, vals := range r.PostForm {
		if name == "smote" || len(vals) == 0 {
			continue
		}
		inputs[name] = vals[0]
	}

	f, pred, err := s.predict(r.Context(), forest, inputs, smote, false)
	if f == nil {
		s.renderError(w, r, err)
		return
	}
	view := newPredictView(f, inputs, smote)
	if err != nil {
		// Input problems are shown next to the form; anything else blocks the page.
		if !errors.Is(err, domain.ErrInvalidInput) {
			s.renderError(w, r, err)
			return
		}
		view.Error = err.Error()
		s.renderPage(w, http.StatusBadRequest, "predict", view)
		return
	}

	alert, err := render.Render(pred.Label)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	view.Alert, view.Pred = &alert, &pred
	s.renderPage(w, http.StatusOK, "predict", view)
}

func (s *Server) handleFeatureExport(w http.ResponseWriter, r *http.Request) {
	forest := r.PathValue("forest")
	features, err := s.svc.Features(r.Context(), forest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.svc.Form(r.Context(), forest, domain.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteFeatureSummary(&buf, features, f); err != nil {
		s.writeError(w, r, fmt.Errorf("export %s features: %w", forest, err))
		return
	}
	w.Header().Set("Content-Type", excel.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", forest+"_features.xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes()) //nolint:errcheck // client may have gone away
}

// newPredictView pairs each control with the value to show: the submitted
// one when present, otherwise the control default. The date control follows
// a submitted year.
func newPredictView(f *form.Form, submitted map[string]string, smote bool) predictView {
	v := predictView{Forest: f.Forest, SMOTE: smote, Years: f.Years}
	year, hasYear := f.SelectedYear(submitted)
	for _, c := range f.Controls {
		cv := controlView{Control: c, Value: submitted[c.Name]}
		if hasYear && c.Widget == form.WidgetDate {
			cv.Control = c.InYear(year)
			cv.Value = anchoredDate(cv.Value, year)
		}
		if cv.Value == "" {
			cv.Value = defaultText(c)
		}
		if c.Min != nil {
			cv.MinS = formatFloat(*c.Min)
		}
		if c.Max != nil {
			cv.MaxS = formatFloat(*c.Max)
		}
		v.Controls = append(v.Controls, cv)
	}
	return v
}

// anchoredDate moves a submitted date to year. Anything else is returned as is.
func anchoredDate(raw string, year int) string {
	date, err := time.Parse(form.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	if date, err = form.AnchorDate(date, year); err != nil {
		return raw
	}
	return date.Format(form.DateLayout)
}

func defaultText(c form.Control) string {
	if c.Widget == form.WidgetDate {
		return c.DefaultDate
	}
	return formatFloat(c.Default)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

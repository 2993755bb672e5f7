package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/render"
)

const maxBodyBytes = 1 << 20

type predictRequest struct {
	SMOTE  bool           `json:"smote"`
	Values map[string]any `json:"values"`
}

type predictResponse struct {
	domain.Prediction
	Alert render.Alert `json:"alert"`
}

func (s *Server) handleListForests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"forests": s.svc.Forests()})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.Form(r.Context(), r.PathValue("forest"), domain.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode request: %v", domain.ErrInvalidInput, err))
		return
	}
	inputs, err := stringValues(req.Values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	_, pred, err := s.predict(r.Context(), r.PathValue("forest"), inputs, req.SMOTE, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alert, err := render.Render(pred.Label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Prediction: pred, Alert: alert})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Diagnostics(r.Context(), r.PathValue("forest"), parseSMOTE(r.URL.Query().Get("smote")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// stringValues converts JSON control values to the raw strings a form
// submission carries. Dates stay strings; numbers keep their literal text.
func stringValues(values map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for name, v := range values {
		switch v := v.(type) {
		case string:
			out[name] = v
		case json.Number:
			out[name] = v.String()
		case bool:
			out[name] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("%w: %s: unsupported value %v", domain.ErrInvalidInput, name, v)
		}
	}
	return out, nil
}

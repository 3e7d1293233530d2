package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/orchestrator"
	"github.com/valpere/perekladach/internal/registry"
	"github.com/valpere/perekladach/internal/translator"
)

type translateRequest struct {
	Text       string                    `json:"text" validate:"required"`
	SourceLang string                    `json:"source_lang" validate:"omitempty,max=16"`
	TargetLang string                    `json:"target_lang" validate:"required,max=16"`
	Services   []string                  `json:"services" validate:"omitempty,dive,required"`
	Config     map[string]map[string]any `json:"config"`
	RequestID  string                    `json:"request_id" validate:"omitempty,max=128"`
}

type resultView struct {
	Name      string `json:"name"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type translateResponse struct {
	RequestID string       `json:"request_id,omitempty"`
	Results   []resultView `json:"results"`
}

func toViews(results []translator.Result) []resultView {
	out := make([]resultView, 0, len(results))
	for _, r := range results {
		out = append(out, resultView{
			Name:      r.Name,
			Text:      r.Text,
			Error:     r.Error,
			LatencyMs: r.Latency.Milliseconds(),
		})
	}
	return out
}

// decode parses and validates the body and turns it into a core request,
// returning the caller-supplied request id alongside. It writes the 400
// response itself and reports false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (translator.Request, string, bool) {
	var body translateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body", nil)
		return translator.Request{}, "", false
	}
	if err := s.validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "validation_failed", "Request validation failed", fieldErrors(verrs))
			return translator.Request{}, "", false
		}
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return translator.Request{}, "", false
	}

	req := translator.Request{
		Text:       body.Text,
		SourceLang: body.SourceLang,
		TargetLang: body.TargetLang,
		Services:   body.Services,
		Config:     s.mergeConfig(body.Config),
	}
	if s.config.Detector != nil {
		req.SourceLang = s.config.Detector.Resolve(req.Text, req.SourceLang)
	}
	return req, body.RequestID, true
}

func fieldErrors(verrs validator.ValidationErrors) map[string]any {
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			fields[fe.Field()] = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("%s validation failed on '%s' tag", fe.Field(), fe.Tag())
		}
	}
	return fields
}

// mergeConfig overlays the request's provider slices on the server's.
func (s *Server) mergeConfig(requested map[string]map[string]any) map[string]map[string]any {
	return registry.MergeConfig(s.config.Providers, requested)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	req, _, ok := s.decode(w, r)
	if !ok {
		return
	}

	resp, err := s.orch.Execute(r.Context(), req)

	var allFailed *orchestrator.AllFailedError
	switch {
	case errors.As(err, &allFailed):
		s.record(r, req, allFailed.Results)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "all_failed",
			"message": allFailed.Error(),
			"results": toViews(allFailed.Results),
		})
		return
	case errors.Is(err, orchestrator.ErrNoResults):
		writeError(w, http.StatusBadRequest, "no_services", "No translation services selected", nil)
		return
	case err != nil:
		s.logger.Error("translation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Translation failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		RequestID: s.record(r, req, resp.Results),
		Results:   toViews(resp.Results),
	})
}

// record stores the outcome when a history is configured. History errors
// never fail the request.
func (s *Server) record(r *http.Request, req translator.Request, results []translator.Result) string {
	if s.config.History == nil {
		return ""
	}
	id, err := s.config.History.Record(r.Context(), withoutConfig(req), results)
	if err != nil {
		s.logger.Warn("failed to record history", zap.Error(err))
		return ""
	}
	return id
}

// withoutConfig keeps credentials out of the history.
func withoutConfig(req translator.Request) translator.Request {
	req.Config = nil
	return req
}

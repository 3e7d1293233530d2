package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/translator"
)

// sseSink writes each event as one "data:" line and flushes it. Emit is
// called from every provider goroutine at once.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	results []translator.Result
}

func (s *sseSink) Emit(ev translator.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Done && !ev.AllDone {
		s.results = append(s.results, translator.Result{Name: ev.Service, Text: ev.Text, Error: ev.Error})
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) terminals() []translator.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]translator.Result(nil), s.results...)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming unsupported", nil)
		return
	}

	req, requestID, ok := s.decode(w, r)
	if !ok {
		return
	}
	// A body id lets the caller correlate events with its own request;
	// otherwise the X-Request-ID the middleware accepted or minted is used.
	if requestID == "" {
		requestID = middleware.GetReqID(r.Context())
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := r.Context()

	if s.config.History != nil {
		if err := s.config.History.SaveRequest(ctx, requestID, withoutConfig(req)); err != nil {
			s.logger.Warn("failed to record history", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	// Stream returns after the sentinel, so the response stays open for
	// exactly as long as the providers run. A client disconnect cancels
	// ctx and with it every in-flight provider call.
	s.orch.Stream(ctx, req, requestID, sink)

	if s.config.History != nil {
		if err := s.config.History.SaveResults(context.WithoutCancel(ctx), requestID, sink.terminals()); err != nil {
			s.logger.Warn("failed to record history", zap.String("request_id", requestID), zap.Error(err))
		}
	}
}

package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/translator"
)

var (
	ErrEmptyRequestID = errors.New("request id is required")
	ErrNilSink        = errors.New("sink is required")
)

// StartStream validates its input and runs Stream in the background. The
// returned error only acknowledges the request; outcomes arrive on sink.
// ctx governs the whole stream, so callers that return before it finishes
// must not pass a context they are about to cancel.
func (o *Orchestrator) StartStream(ctx context.Context, req translator.Request, requestID string, sink Sink) error {
	if requestID == "" {
		return ErrEmptyRequestID
	}
	if sink == nil {
		return ErrNilSink
	}
	req = req.Clone()
	go o.Stream(ctx, req, requestID, sink)
	return nil
}

// Stream dispatches like Execute but reports through sink. Streaming
// providers emit one delta event per fragment before their terminal event;
// every provider gets exactly one terminal event; a sentinel with AllDone
// set follows once every task has finished. Stream returns after the
// sentinel has been emitted.
func (o *Orchestrator) Stream(ctx context.Context, req translator.Request, requestID string, sink Sink) {
	req = req.Clone()
	names := o.services(req)

	o.logger.Debug("stream started",
		zap.String("request_id", requestID),
		zap.Strings("services", names),
	)

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			o.streamTask(ctx, req, requestID, name, sink)
		}(name)
	}
	wg.Wait()

	o.emit(sink, translator.StreamEvent{RequestID: requestID, Done: true, AllDone: true})
	o.logger.Debug("stream finished", zap.String("request_id", requestID))
}

func (o *Orchestrator) streamTask(ctx context.Context, req translator.Request, requestID, name string, sink Sink) {
	t := task{requested: name}
	terminated := false

	terminal := func(text string, err error) {
		ev := translator.StreamEvent{RequestID: requestID, Service: t.name(), Done: true}
		if err != nil {
			ev.Error = err.Error()
			o.logger.Info("provider failed",
				zap.String("request_id", requestID),
				zap.String("service", ev.Service),
				zap.String("error", ev.Error),
			)
		} else {
			ev.Text = text
		}
		terminated = true
		o.emit(sink, ev)
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("provider task panicked",
				zap.String("request_id", requestID),
				zap.String("service", t.name()),
				zap.Any("panic", r),
			)
			if !terminated {
				terminal("", translator.TaskFailure(t.name(), r))
			}
		}
	}()

	t = o.prepare(req, name)
	if t.err != nil {
		terminal("", t.err)
		return
	}

	ctx, cancel := o.taskContext(ctx)
	defer cancel()

	st, ok := t.entry.Translator.(translator.StreamTranslator)
	if !ok {
		res, err := t.entry.Translator.Translate(ctx, t.cfg, t.req)
		out := finish(t, res, err)
		if out.Error != "" {
			terminal("", errors.New(out.Error))
			return
		}
		terminal(out.Text, nil)
		return
	}

	text, err := st.TranslateStream(ctx, t.cfg, t.req, func(delta string) {
		if delta == "" {
			return
		}
		o.emit(sink, translator.StreamEvent{RequestID: requestID, Service: t.name(), Delta: delta})
	})
	if err == nil && text == "" {
		err = translator.Malformed(t.name(), "", nil)
	}
	terminal(text, err)
}

// emit delivers ev and logs a failed delivery. Nothing is retried and a
// panicking sink counts as a failed delivery.
func (o *Orchestrator) emit(sink Sink, ev translator.StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("stream sink panicked",
				zap.String("request_id", ev.RequestID),
				zap.String("service", ev.Service),
				zap.Any("panic", r),
			)
		}
	}()
	if err := sink.Emit(ev); err != nil {
		o.logger.Warn("stream event dropped",
			zap.String("request_id", ev.RequestID),
			zap.String("service", ev.Service),
			zap.Bool("all_done", ev.AllDone),
			zap.Error(err),
		)
	}
}

// Package orchestrator fans one translation request out to every requested
// provider concurrently and collects the outcomes, either as one aggregate
// response or as a stream of events delivered to a Sink.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/registry"
	"github.com/valpere/perekladach/internal/translator"
)

// ErrNoResults is returned when a dispatch produced no result at all.
var ErrNoResults = errors.New("no results")

// AllFailedError is returned by Execute when every provider failed. Results
// holds the failed entries in completion order.
type AllFailedError struct {
	Results []translator.Result
}

func (e *AllFailedError) Error() string {
	parts := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Error))
	}
	return "all services failed: " + strings.Join(parts, "; ")
}

type Config struct {
	// Timeout bounds each provider task on top of the adapter's own request
	// timeout. Zero leaves tasks bounded by the adapters only.
	Timeout time.Duration
}

type Orchestrator struct {
	registry *registry.Registry
	config   Config
	logger   *zap.Logger
}

func New(reg *registry.Registry, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: reg,
		config:   config,
		logger:   logger,
	}
}

// services returns the names to dispatch to, duplicates included.
func (o *Orchestrator) services(req translator.Request) []string {
	if len(req.Services) > 0 {
		return req.Services
	}
	return o.registry.DefaultServices()
}

func (o *Orchestrator) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.config.Timeout)
}

// task is what one provider goroutine works with. A non-nil err means the
// adapter must not be called.
type task struct {
	requested string
	entry     registry.Entry
	cfg       translator.ProviderConfig
	req       translator.TranslateRequest
	err       error
}

// name is the display name reported for the task.
func (t task) name() string {
	if t.entry.Name != "" {
		return t.entry.Name
	}
	return t.requested
}

func (o *Orchestrator) prepare(req translator.Request, requested string) task {
	t := task{
		requested: requested,
		req: translator.TranslateRequest{
			Text:       req.Text,
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
		},
	}
	entry, ok := o.registry.Lookup(requested)
	if !ok {
		t.err = translator.Unsupported(requested)
		return t
	}
	t.entry = entry

	cfg, ready, err := registry.Resolve(req.Config, requested, entry)
	if !ready {
		t.err = err
		return t
	}
	t.cfg = cfg
	return t
}

// finish makes a result satisfy the text/error exclusivity whatever the
// adapter returned.
func finish(t task, res *translator.Result, err error) translator.Result {
	out := translator.Result{Name: t.name()}
	if res != nil {
		out.Text = res.Text
		out.Error = res.Error
		out.Latency = res.Latency
	}
	if err != nil {
		out.Error = err.Error()
	}
	if out.Error == "" && out.Text == "" {
		out.Error = translator.Malformed(out.Name, "", nil).Error()
	}
	if out.Error != "" {
		out.Text = ""
	}
	return out
}

func (o *Orchestrator) runTask(ctx context.Context, req translator.Request, name string) (result translator.Result) {
	t := task{requested: name}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("provider task panicked",
				zap.String("service", t.name()),
				zap.Any("panic", r),
			)
			result = translator.Result{Name: t.name(), Error: translator.TaskFailure(t.name(), r).Error()}
		}
	}()

	t = o.prepare(req, name)
	if t.err != nil {
		return translator.Result{Name: t.name(), Error: t.err.Error()}
	}

	ctx, cancel := o.taskContext(ctx)
	defer cancel()

	res, err := t.entry.Translator.Translate(ctx, t.cfg, t.req)
	return finish(t, res, err)
}

// Execute asks every requested provider, or the registry's default set,
// and returns their results in completion order. A provider failure only
// marks its own entry; Execute itself fails with *AllFailedError when no
// entry succeeded.
func (o *Orchestrator) Execute(ctx context.Context, req translator.Request) (*translator.Response, error) {
	req = req.Clone()
	names := o.services(req)
	start := time.Now()

	o.logger.Debug("dispatch started", zap.Strings("services", names))

	resultCh := make(chan translator.Result, len(names))

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			resultCh <- o.runTask(ctx, req, name)
		}(name)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	resp := &translator.Response{Results: make([]translator.Result, 0, len(names))}
	for res := range resultCh {
		if res.Failed() {
			o.logger.Info("provider failed",
				zap.String("service", res.Name),
				zap.String("error", res.Error),
			)
		}
		resp.Results = append(resp.Results, res)
	}

	o.logger.Debug("dispatch finished",
		zap.Int("results", len(resp.Results)),
		zap.Int("succeeded", resp.Succeeded()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if len(resp.Results) == 0 {
		return nil, ErrNoResults
	}
	if resp.Succeeded() == 0 {
		return nil, &AllFailedError{Results: resp.Results}
	}
	return resp, nil
}

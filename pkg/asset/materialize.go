package asset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elonfeng/hnpipe/internal/metrics"
	"github.com/elonfeng/hnpipe/internal/warehouse"
	"github.com/elonfeng/hnpipe/pkg/source"
	"github.com/elonfeng/hnpipe/pkg/table"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink is the part of the warehouse a run needs.
type Sink interface {
	warehouse.Writer
	warehouse.Reader
}

// Result summarises one materialization run.
type Result struct {
	RunID    string         `json:"run_id"`
	Assets   []string       `json:"assets"`
	Rows     map[string]int `json:"rows"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Error    string         `json:"error,omitempty"`
}

// OK reports whether the run succeeded.
func (r *Result) OK() bool { return r.Error == "" }

// Materializer computes assets from a source client and writes them to a sink.
type Materializer struct {
	client source.Client
	sink   Sink
	opts   ItemsOptions
	logger zerolog.Logger

	// OnRun, if set, is called after every run, successful or not.
	OnRun func(ctx context.Context, res *Result)

	mu sync.Mutex
}

// NewMaterializer wires a client and a sink into a runnable pipeline.
func NewMaterializer(client source.Client, sink Sink, opts ItemsOptions, logger zerolog.Logger) *Materializer {
	return &Materializer{
		client: client,
		sink:   sink,
		opts:   opts,
		logger: logger,
	}
}

// Run materializes the selected assets (all when selection is empty). Every
// selected table is computed before any is written, so a source failure
// leaves the warehouse untouched.
func (m *Materializer) Run(ctx context.Context, selection []string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := &Result{
		RunID:   uuid.NewString(),
		Rows:    make(map[string]int),
		Started: time.Now().UTC(),
	}
	logger := m.logger.With().Str("run_id", res.RunID).Logger()

	tables, err := m.compute(ctx, selection, logger)
	if err == nil {
		err = m.write(ctx, tables, res, logger)
	}

	res.Duration = time.Since(res.Started)
	metrics.RunDuration.Observe(res.Duration.Seconds())
	if err != nil {
		res.Error = err.Error()
		metrics.Runs.WithLabelValues("failure").Inc()
		logger.Error().Err(err).Dur("duration", res.Duration).Msg("run failed")
	} else {
		metrics.Runs.WithLabelValues("success").Inc()
		logger.Info().Strs("assets", res.Assets).Dur("duration", res.Duration).Msg("run complete")
	}

	if m.OnRun != nil {
		m.OnRun(ctx, res)
	}
	return res, err
}

func (m *Materializer) compute(ctx context.Context, selection []string, logger zerolog.Logger) ([]*table.Table, error) {
	selected, err := resolve(selection)
	if err != nil {
		return nil, err
	}

	var items *table.Table
	if selected[NameItems] {
		logger.Info().Int("count", m.opts.Count).Msg("fetching items")
		items, err = Items(ctx, m.client, m.opts, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info().Msg("loading items from warehouse")
		items, err = m.sink.ReadTable(ctx, NameItems)
		if err != nil {
			return nil, fmt.Errorf("load upstream items: %w", err)
		}
	}

	var out []*table.Table
	for _, a := range Registry() {
		if !selected[a.Name] {
			continue
		}
		var t *table.Table
		switch a.Name {
		case NameItems:
			t = items
		case NameComments:
			t, err = Comments(items)
		case NameStories:
			t, err = Stories(items)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *Materializer) write(ctx context.Context, tables []*table.Table, res *Result, logger zerolog.Logger) error {
	for _, t := range tables {
		if err := m.sink.WriteTable(ctx, t); err != nil {
			return fmt.Errorf("write %s: %w", t.Name, err)
		}
		res.Assets = append(res.Assets, t.Name)
		res.Rows[t.Name] = t.Len()
		metrics.TableRows.WithLabelValues(t.Name).Set(float64(t.Len()))
		logger.Info().Str("table", t.Name).Int("rows", t.Len()).Msg("table written")
	}
	return nil
}

func resolve(selection []string) (map[string]bool, error) {
	selected := make(map[string]bool)
	if len(selection) == 0 {
		for _, a := range Registry() {
			selected[a.Name] = true
		}
		return selected, nil
	}
	for _, name := range selection {
		if !known(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, name)
		}
		selected[name] = true
	}
	return selected, nil
}

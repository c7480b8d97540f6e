package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/hnpipe/internal/config"
	"github.com/elonfeng/hnpipe/internal/metrics"
	"github.com/elonfeng/hnpipe/internal/scheduler"
	"github.com/elonfeng/hnpipe/internal/warehouse"
	"github.com/elonfeng/hnpipe/pkg/alert"
	"github.com/elonfeng/hnpipe/pkg/asset"
	"github.com/elonfeng/hnpipe/pkg/server"
	"github.com/elonfeng/hnpipe/pkg/source"
	"github.com/elonfeng/hnpipe/pkg/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var metricsOnce sync.Once

func registerMetrics() {
	metricsOnce.Do(func() { metrics.MustRegister(prometheus.DefaultRegisterer) })
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path, deployment)
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func buildClient(cfg *config.Config) source.Client {
	if cfg.Source.Kind == "stub" {
		return source.NewStub()
	}
	return source.NewHackerNews(cfg.Source.BaseURL, cfg.Source.ParseTimeout())
}

func openWarehouse(ctx context.Context, cfg *config.Config) (*warehouse.SQLWarehouse, error) {
	d, err := cfg.Selected()
	if err != nil {
		return nil, err
	}
	dsn, err := d.Warehouse.ResolveDSN()
	if err != nil {
		return nil, err
	}
	return warehouse.Open(ctx, warehouse.Options{
		Driver: d.Warehouse.Driver,
		DSN:    dsn,
		Schema: d.Warehouse.Schema,
	})
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Secret))
	}
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Notify.Slack.WebhookURL))
	}

	return alert.NewManager(notifiers)
}

func buildMaterializer(cfg *config.Config, client source.Client, wh asset.Sink, logger zerolog.Logger) *asset.Materializer {
	m := asset.NewMaterializer(client, wh, asset.ItemsOptions{
		Count:       cfg.Items.Count,
		SkipUnknown: cfg.Items.SkipUnknown,
	}, logger.With().Str("deployment", cfg.Deployment).Logger())

	alerts := buildAlertManager(cfg)
	if alerts.HasNotifiers() {
		m.OnRun = func(ctx context.Context, res *asset.Result) {
			if err := alerts.Broadcast(ctx, alert.FromResult(cfg.Deployment, res)); err != nil {
				logger.Warn().Err(err).Str("run_id", res.RunID).Msg("run notification failed")
			}
		}
	}
	return m
}

func runMaterialize(ctx context.Context, selection string, count int, stub bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if count > 0 {
		cfg.Items.Count = count
	}
	if stub {
		cfg.Source.Kind = "stub"
	}

	names, err := asset.ParseSelection(selection)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	registerMetrics()

	wh, err := openWarehouse(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close()

	m := buildMaterializer(cfg, buildClient(cfg), wh, logger)
	res, err := m.Run(ctx, names)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, name := range res.Assets {
		fmt.Fprintf(w, "%s\t%d\n", name, res.Rows[name])
	}
	return w.Flush()
}

func runAssets() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tDEPENDS ON\tDESCRIPTION")
	for _, a := range asset.Registry() {
		deps := strings.Join(a.Deps, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, deps, a.Description)
	}
	return w.Flush()
}

func runShow(ctx context.Context, name string, jsonOutput bool, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	wh, err := openWarehouse(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close()

	tbl, err := wh.ReadTable(ctx, name)
	if err != nil {
		return err
	}
	if limit > 0 && tbl.Len() > limit {
		tbl.Rows = tbl.Rows[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tbl)
	}
	return printTable(tbl)
}

func printTable(tbl *table.Table) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	headers := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		headers[i] = strings.ToUpper(c.Name)
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	for _, row := range tbl.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func runServe(port int, withScheduler bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	logger := newLogger(cfg.Log)
	registerMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wh, err := openWarehouse(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close()

	m := buildMaterializer(cfg, buildClient(cfg), wh, logger)

	if withScheduler {
		sched := scheduler.New(m, cfg.Schedule.ParseInterval(), logger)
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("scheduler error")
			}
		}()
	}

	srv := server.New(m, wh, prometheus.DefaultGatherer, port, logger)
	return srv.ListenAndServe(ctx)
}

// Package runner orchestrates a tickfold invocation end to end: load a
// dataset into the store, evaluate one or many resample requests, and
// encode the results. The CLI is a thin shell over this package.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tickfold/tickfold/pkg/config"
	"github.com/tickfold/tickfold/pkg/errors"
	"github.com/tickfold/tickfold/pkg/formats"
	"github.com/tickfold/tickfold/pkg/logger"
	"github.com/tickfold/tickfold/pkg/observability"
	"github.com/tickfold/tickfold/pkg/resample"
	"github.com/tickfold/tickfold/pkg/store"
)

// Runner wires the store and engine together under one configuration.
type Runner struct {
	cfg      *config.Config
	store    *store.Store
	engine   *resample.Engine
	shutdown func(context.Context) error
}

// New initializes logging, tracing, the store and the engine
func New(cfg *config.Config) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, "invalid configuration")
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: cfg.Logging.OutputPaths,
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, "failed to initialize logger")
	}

	shutdown, err := observability.Init(observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		PrettyPrint: cfg.Tracing.PrettyPrint,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, "failed to initialize tracing")
	}

	st, err := store.New(store.Config{Compression: store.Algorithm(cfg.Store.Compression)})
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		store:    st,
		engine:   resample.NewEngine(resample.EngineConfig{}),
		shutdown: shutdown,
	}, nil
}

// Store returns the underlying segment store
func (r *Runner) Store() *store.Store { return r.store }

// Close flushes tracing and logs
func (r *Runner) Close(ctx context.Context) error {
	_ = logger.Sync()
	if r.shutdown != nil {
		return r.shutdown(ctx)
	}
	return nil
}

// FormatFor guesses the interchange format from a file extension unless
// explicitly given.
func FormatFor(path, explicit string) (formats.Format, error) {
	if explicit != "" {
		return formats.ParseFormat(explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formats.JSON, nil
	case ".arrow", ".arrows", ".ipc":
		return formats.Arrow, nil
	case ".parquet":
		return formats.Parquet, nil
	case ".avro":
		return formats.Avro, nil
	default:
		return "", fmt.Errorf("cannot infer format from %q; pass one explicitly", path)
	}
}

// LoadDataset reads a dataset file into the store
func (r *Runner) LoadDataset(path string, format formats.Format) error {
	f, err := os.Open(path) //nolint:gosec // G304: path is operator-controlled
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open dataset")
	}
	defer func() { _ = f.Close() }()

	ds, err := formats.ReadDataset(f, format)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read dataset")
	}
	for _, symbol := range ds.SymbolNames() {
		for _, seg := range ds.Symbols[symbol] {
			if err := r.store.Append(symbol, seg); err != nil {
				return err
			}
		}
	}
	logger.Info("dataset loaded",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("symbols", len(ds.Symbols)))
	return nil
}

// Inspect returns per-symbol metadata for every stored symbol
func (r *Runner) Inspect() ([]store.Info, error) {
	symbols := r.store.Symbols()
	infos := make([]store.Info, 0, len(symbols))
	for _, symbol := range symbols {
		info, err := r.store.Describe(symbol)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Run evaluates one request against the store
func (r *Runner) Run(ctx context.Context, req resample.Request) (*resample.Table, error) {
	src, err := r.store.Iterator(req.Symbol, req.DateRange)
	if err != nil {
		return nil, err
	}
	return r.engine.Resample(ctx, src, req)
}

// RunBatch evaluates independent requests concurrently under the
// configured concurrency bound. A request whose symbol is missing fails in
// its own slot.
func (r *Runner) RunBatch(ctx context.Context, reqs []resample.Request) []resample.BatchResult {
	results := make([]resample.BatchResult, len(reqs))
	runnable := make([]resample.BatchItem, 0, len(reqs))
	indices := make([]int, 0, len(reqs))
	for i, req := range reqs {
		src, err := r.store.Iterator(req.Symbol, req.DateRange)
		if err != nil {
			results[i] = resample.BatchResult{Err: err}
			continue
		}
		runnable = append(runnable, resample.BatchItem{Source: src, Request: req})
		indices = append(indices, i)
	}
	for j, res := range r.engine.ResampleBatch(ctx, runnable, r.cfg.Batch.Concurrency) {
		results[indices[j]] = res
	}
	return results
}

// WriteTable encodes a result table to path, or stdout when path is empty
func WriteTable(path string, t *resample.Table, format formats.Format) error {
	if path == "" {
		return formats.WriteTable(os.Stdout, t, format)
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is operator-controlled
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create output file")
	}
	defer func() { _ = f.Close() }()
	if err := formats.WriteTable(f, t, format); err != nil {
		return err
	}
	return f.Close()
}

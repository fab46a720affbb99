package render

import (
	"context"
	"errors"
	"time"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/infra/logging"
	"pdf-generator/internal/infra/stats"
)

var errEmptyPDF = errors.New("engine returned an empty PDF")

// Config holds the renderer limits. Zero durations disable the matching deadline.
type Config struct {
	Timeout        time.Duration
	AcquireTimeout time.Duration
	MaxConcurrent  int
}

// Renderer runs each conversion in its own engine session and guarantees the
// session is closed before Render returns.
type Renderer struct {
	cfg    Config
	engine Engine
	gate   *Gate
	stats  stats.Recorder
}

// Stats combines gate occupancy with the lifecycle counters.
type Stats struct {
	GateStats
	TimeoutSecs int              `json:"timeout_secs"`
	Counters    map[string]int64 `json:"counters"`
}

// New creates a Renderer whose gate is sized from cfg.MaxConcurrent. A nil
// rec counts in memory.
func New(cfg Config, engine Engine, rec stats.Recorder) *Renderer {
	if rec == nil {
		rec = stats.NewMemoryRecorder()
	}
	return &Renderer{
		cfg:    cfg,
		engine: engine,
		gate:   NewGate(cfg.MaxConcurrent),
		stats:  rec,
	}
}

// Render converts html to PDF bytes using layout. Every error it returns is
// a *domain.RenderError.
func (r *Renderer) Render(ctx context.Context, html string, layout domain.LayoutDescriptor) ([]byte, error) {
	start := time.Now()

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	if err := r.acquire(ctx); err != nil {
		return nil, r.fail(ctx, domain.StageCapacity, err)
	}
	defer r.gate.Release()

	sess, err := r.engine.Launch(ctx)
	if err != nil {
		r.stats.Incr(ctx, stats.LaunchFailed)
		return nil, r.fail(ctx, domain.StageLaunch, err)
	}
	r.stats.Incr(ctx, stats.Launched)
	defer r.release(ctx, sess)

	if err := sess.SetContent(ctx, html); err != nil {
		return nil, r.fail(ctx, domain.StageInject, err)
	}

	pdf, err := sess.PrintToPDF(ctx, layout)
	if err != nil {
		return nil, r.fail(ctx, domain.StageExport, err)
	}
	if len(pdf) == 0 {
		return nil, r.fail(ctx, domain.StageExport, errEmptyPDF)
	}

	r.stats.Incr(ctx, stats.Succeeded)
	logging.Debug("PDF rendered", "bytes", len(pdf), "duration_ms", time.Since(start).Milliseconds())
	return pdf, nil
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.cfg.AcquireTimeout <= 0 {
		return r.gate.Acquire(ctx)
	}
	acquireCtx, cancel := context.WithTimeout(ctx, r.cfg.AcquireTimeout)
	defer cancel()
	return r.gate.Acquire(acquireCtx)
}

func (r *Renderer) release(ctx context.Context, sess Session) {
	r.stats.Incr(ctx, stats.Released)
	if err := sess.Close(); err != nil {
		r.stats.Incr(ctx, stats.ReleaseFailed)
		logging.Warn("Engine session release failed", "error", err)
	}
}

func (r *Renderer) fail(ctx context.Context, stage domain.Stage, err error) error {
	re := &domain.RenderError{Stage: stage, Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		re.Timeout = true
		r.stats.Incr(ctx, stats.TimedOut)
	}
	r.stats.Incr(ctx, stats.Failed)
	return re
}

// Stats reports gate occupancy and counters.
func (r *Renderer) Stats(ctx context.Context) (Stats, error) {
	counters, err := r.stats.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		GateStats:   r.gate.Stats(),
		TimeoutSecs: int(r.cfg.Timeout / time.Second),
		Counters:    counters,
	}, nil
}

// Ready reports whether new renders are accepted.
func (r *Renderer) Ready() bool {
	return r.gate.Stats().Enabled
}

// Close stops accepting renders. Sessions already running finish normally.
func (r *Renderer) Close() {
	r.gate.Close()
}

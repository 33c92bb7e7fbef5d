package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/0xjcr/chrome-osint-extension/internal/browser"
	"github.com/0xjcr/chrome-osint-extension/internal/config"
)

// Opener mints page sessions. *browser.Manager satisfies it.
type Opener interface {
	Open(ctx context.Context) (*browser.Session, error)
}

// Extractor probes one public source for traces of a username.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, sessions Opener, username string) (map[string]string, error)
}

// Result is the outcome for a single source. Exactly one of Fields or Error
// is meaningful.
type Result struct {
	Source  string            `json:"source"`
	Fields  map[string]string `json:"fields,omitempty"`
	Error   string            `json:"error,omitempty"`
	Elapsed time.Duration     `json:"elapsed"`
}

// Report aggregates the per-source results of one lookup run.
type Report struct {
	RunID     string    `json:"run_id"`
	Username  string    `json:"username"`
	StartedAt time.Time `json:"started_at"`
	Results   []Result  `json:"results"`
}

// Runner fans a username out across all configured extractors at once.
type Runner struct {
	opener     Opener
	extractors []Extractor
	limiter    *rate.Limiter
	timeout    time.Duration
	log        *zap.Logger
}

// NewRunner builds a runner over the given extractors. The rate limiter
// paces session launches so a burst of sources does not hammer the browser.
func NewRunner(opener Opener, extractors []Extractor, cfg config.LookupConfig, log *zap.Logger) *Runner {
	return &Runner{
		opener:     opener,
		extractors: extractors,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		timeout:    cfg.Timeout,
		log:        log.Named("lookup"),
	}
}

// Run queries every source concurrently and always returns a full report:
// a source that fails, times out, or panics degrades to an error entry
// without disturbing the others. Total wall time tracks the slowest source,
// not the sum.
func (r *Runner) Run(ctx context.Context, username string) *Report {
	report := &Report{
		RunID:     uuid.NewString(),
		Username:  username,
		StartedAt: time.Now().UTC(),
		Results:   make([]Result, len(r.extractors)),
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i, ext := range r.extractors {
		g.Go(func() error {
			start := time.Now()
			res := Result{Source: ext.Name()}

			if err := r.limiter.Wait(gctx); err != nil {
				res.Error = err.Error()
				res.Elapsed = time.Since(start)
				report.Results[i] = res
				return nil
			}

			fields, err := r.extract(gctx, ext, username)
			res.Elapsed = time.Since(start)
			if err != nil {
				r.log.Warn("source failed",
					zap.String("source", ext.Name()),
					zap.String("username", username),
					zap.Error(err))
				res.Error = err.Error()
			} else {
				res.Fields = fields
			}
			report.Results[i] = res
			return nil
		})
	}
	g.Wait()

	r.log.Info("lookup finished",
		zap.String("run_id", report.RunID),
		zap.String("username", username),
		zap.Int("sources", len(report.Results)))
	return report
}

// extract shields the runner from a misbehaving extractor.
func (r *Runner) extract(ctx context.Context, ext Extractor, username string) (fields map[string]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fields = nil
			err = fmt.Errorf("source panicked: %v", rec)
		}
	}()
	return ext.Extract(ctx, r.opener, username)
}

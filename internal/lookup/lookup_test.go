package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/0xjcr/chrome-osint-extension/internal/config"
)

type stubExtractor struct {
	name   string
	delay  time.Duration
	fields map[string]string
	err    error
	panics bool
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(ctx context.Context, _ Opener, username string) (map[string]string, error) {
	if s.panics {
		panic("extractor exploded")
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

func testLookupConfig() config.LookupConfig {
	return config.LookupConfig{
		Timeout:       30 * time.Second,
		RatePerSecond: 1000,
	}
}

func TestRunCollectsAllSources(t *testing.T) {
	exts := []Extractor{
		&stubExtractor{name: "github", delay: 50 * time.Millisecond, fields: map[string]string{"url": "https://github.com/jane"}},
		&stubExtractor{name: "reddit", delay: 80 * time.Millisecond, err: errors.New("no reddit account")},
		&stubExtractor{name: "keybase", delay: 120 * time.Millisecond, fields: map[string]string{"url": "https://keybase.io/jane"}},
	}
	r := NewRunner(nil, exts, testLookupConfig(), zaptest.NewLogger(t))

	start := time.Now()
	report := r.Run(context.Background(), "jane")
	elapsed := time.Since(start)

	require.Len(t, report.Results, 3)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "jane", report.Username)

	byName := map[string]Result{}
	for _, res := range report.Results {
		byName[res.Source] = res
	}

	assert.Equal(t, "https://github.com/jane", byName["github"].Fields["url"])
	assert.Empty(t, byName["github"].Error)

	assert.Contains(t, byName["reddit"].Error, "no reddit account")
	assert.Empty(t, byName["reddit"].Fields)

	assert.Equal(t, "https://keybase.io/jane", byName["keybase"].Fields["url"])

	// Concurrent fan-out: total wall time tracks the slowest source.
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond, "sources must run concurrently, not sequentially")
}

func TestRunSurvivesPanickingSource(t *testing.T) {
	exts := []Extractor{
		&stubExtractor{name: "github", delay: 10 * time.Millisecond, fields: map[string]string{"ok": "yes"}},
		&stubExtractor{name: "keybase", panics: true},
	}
	r := NewRunner(nil, exts, testLookupConfig(), zaptest.NewLogger(t))

	report := r.Run(context.Background(), "jane")
	require.Len(t, report.Results, 2)

	byName := map[string]Result{}
	for _, res := range report.Results {
		byName[res.Source] = res
	}
	assert.Equal(t, "yes", byName["github"].Fields["ok"])
	assert.Contains(t, byName["keybase"].Error, "source panicked")
}

func TestRunHonorsOverallTimeout(t *testing.T) {
	cfg := testLookupConfig()
	cfg.Timeout = 60 * time.Millisecond
	exts := []Extractor{
		&stubExtractor{name: "slow", delay: 10 * time.Second},
	}
	r := NewRunner(nil, exts, cfg, zaptest.NewLogger(t))

	start := time.Now()
	report := r.Run(context.Background(), "jane")

	require.Len(t, report.Results, 1)
	assert.NotEmpty(t, report.Results[0].Error)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDefaultExtractorsFilter(t *testing.T) {
	all := DefaultExtractors(nil)
	require.Len(t, all, 3)

	subset := DefaultExtractors([]string{"GitHub", "keybase"})
	require.Len(t, subset, 2)
	assert.Equal(t, "github", subset[0].Name())
	assert.Equal(t, "keybase", subset[1].Name())

	assert.Empty(t, DefaultExtractors([]string{"myspace"}))
}

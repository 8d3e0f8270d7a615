package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/batchflow/pkg/job"
)

func jobsetSpec(name string, marketHours bool) job.Spec {
	return job.Spec{Name: name, Target: name + ".py", Priority: job.PriorityMedium, RequiresMarketHours: marketHours}
}

func jobNames(specs []job.Spec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name)
	}
	return out
}

func TestSelectJobs(t *testing.T) {
	specs := []job.Spec{
		jobsetSpec("load_symbols", false),
		jobsetSpec("load_prices_daily", false),
		jobsetSpec("compute_scores", false),
	}

	t.Run("no patterns keeps everything", func(t *testing.T) {
		keep, err := selectJobs(specs, nil, nil)
		require.NoError(t, err)
		assert.Len(t, keep, 3)
	})

	t.Run("only glob", func(t *testing.T) {
		keep, err := selectJobs(specs, []string{"load_*"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"load_symbols", "load_prices_daily"}, jobNames(keep))
	})

	t.Run("skip glob", func(t *testing.T) {
		keep, err := selectJobs(specs, nil, []string{"compute_*"})
		require.NoError(t, err)
		assert.Equal(t, []string{"load_symbols", "load_prices_daily"}, jobNames(keep))
	})

	t.Run("skip wins over only", func(t *testing.T) {
		keep, err := selectJobs(specs, []string{"load_*"}, []string{"load_prices_daily"})
		require.NoError(t, err)
		assert.Equal(t, []string{"load_symbols"}, jobNames(keep))
	})

	t.Run("unmatched only pattern fails", func(t *testing.T) {
		_, err := selectJobs(specs, []string{"no_such_*"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matches no job")
	})

	t.Run("unmatched skip pattern fails", func(t *testing.T) {
		_, err := selectJobs(specs, nil, []string{"typo_*"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matches no job")
	})

	t.Run("invalid pattern fails", func(t *testing.T) {
		_, err := selectJobs(specs, []string{"[bad"}, nil)
		require.Error(t, err)
	})
}

func TestMarketOpen(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday mid-session", time.Date(2026, 8, 26, 12, 0, 0, 0, loc), true},
		{"weekday at open", time.Date(2026, 8, 26, 9, 30, 0, 0, loc), true},
		{"weekday before open", time.Date(2026, 8, 26, 9, 29, 0, 0, loc), false},
		{"weekday at close", time.Date(2026, 8, 26, 16, 0, 0, 0, loc), false},
		{"weekday evening", time.Date(2026, 8, 26, 20, 0, 0, 0, loc), false},
		{"saturday", time.Date(2026, 8, 29, 12, 0, 0, 0, loc), false},
		{"sunday", time.Date(2026, 8, 30, 12, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marketOpen(tt.at))
		})
	}
}

func TestFilterMarketHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	specs := []job.Spec{
		jobsetSpec("load_prices_daily", false),
		jobsetSpec("load_prices_intraday", true),
	}

	t.Run("market open keeps everything", func(t *testing.T) {
		keep, skipped := filterMarketHours(specs, time.Date(2026, 8, 26, 12, 0, 0, 0, loc))
		assert.Len(t, keep, 2)
		assert.Empty(t, skipped)
	})

	t.Run("market closed drops gated jobs", func(t *testing.T) {
		keep, skipped := filterMarketHours(specs, time.Date(2026, 8, 29, 12, 0, 0, 0, loc))
		assert.Equal(t, []string{"load_prices_daily"}, jobNames(keep))
		assert.Equal(t, []string{"load_prices_intraday"}, skipped)
	})
}

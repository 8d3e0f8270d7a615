package manifest

import (
	"time"

	"github.com/quantfabric/batchflow/pkg/job"
)

// Environment variables the platform's loaders need to reach the shared
// relational store.
var dbEnv = []string{"BATCHFLOW_DB_URL"}

// DefaultJobSet returns the built-in loader definitions for the platform.
//
// The set encodes the platform's standing data-flow: reference data first
// (symbols), then raw market data (prices, fundamentals), then derived
// series (technicals), then composite scores. Manifest files override or
// extend this set; they do not replace it.
func DefaultJobSet() []job.Spec {
	return []job.Spec{
		{
			Name:         "load_symbols",
			Target:       "loaders/load_symbols.py",
			Priority:     job.PriorityCritical,
			Timeout:      15 * time.Minute,
			RetryBudget:  2,
			RequiredEnv:  dbEnv,
			Dependencies: nil,
		},
		{
			Name:         "load_prices_daily",
			Target:       "loaders/load_prices_daily.py",
			Priority:     job.PriorityCritical,
			Timeout:      30 * time.Minute,
			RetryBudget:  2,
			RequiredEnv:  append([]string{"MARKET_API_KEY"}, dbEnv...),
			Dependencies: []string{"load_symbols"},
		},
		{
			Name:                "load_prices_intraday",
			Target:              "loaders/load_prices_intraday.py",
			Priority:            job.PriorityCritical,
			Timeout:             20 * time.Minute,
			RetryBudget:         1,
			RequiredEnv:         append([]string{"MARKET_API_KEY"}, dbEnv...),
			Dependencies:        []string{"load_symbols"},
			RequiresMarketHours: true,
		},
		{
			Name:         "load_fundamentals",
			Target:       "loaders/load_fundamentals.py",
			Priority:     job.PriorityHigh,
			Timeout:      45 * time.Minute,
			RetryBudget:  2,
			RequiredEnv:  append([]string{"FUNDAMENTALS_API_KEY"}, dbEnv...),
			Dependencies: []string{"load_symbols"},
		},
		{
			Name:         "load_earnings",
			Target:       "loaders/load_earnings.py",
			Priority:     job.PriorityHigh,
			Timeout:      20 * time.Minute,
			RetryBudget:  1,
			RequiredEnv:  dbEnv,
			Dependencies: []string{"load_symbols"},
		},
		{
			Name:         "compute_technicals",
			Target:       "loaders/compute_technicals.py",
			Priority:     job.PriorityMedium,
			Timeout:      30 * time.Minute,
			RetryBudget:  1,
			RequiredEnv:  dbEnv,
			Dependencies: []string{"load_prices_daily"},
		},
		{
			Name:         "compute_momentum",
			Target:       "loaders/compute_momentum.py",
			Priority:     job.PriorityMedium,
			Timeout:      20 * time.Minute,
			RetryBudget:  1,
			RequiredEnv:  dbEnv,
			Dependencies: []string{"load_prices_daily"},
		},
		{
			Name:         "compute_scores",
			Target:       "loaders/compute_scores.py",
			Priority:     job.PriorityLow,
			Timeout:      25 * time.Minute,
			RetryBudget:  1,
			RequiredEnv:  dbEnv,
			Dependencies: []string{"compute_technicals", "compute_momentum", "load_fundamentals"},
		},
		{
			Name:         "refresh_dashboards",
			Target:       "loaders/refresh_dashboards.py",
			Priority:     job.PriorityLow,
			Timeout:      10 * time.Minute,
			RetryBudget:  0,
			RequiredEnv:  dbEnv,
			Dependencies: []string{"compute_scores"},
		},
	}
}

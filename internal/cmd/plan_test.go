package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quantfabric/batchflow/internal/config"
	"github.com/quantfabric/batchflow/internal/observability"
)

func TestRunPlan(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	origLogger := observability.CLILogger
	observability.CLILogger = zap.New(core)
	defer func() { observability.CLILogger = origLogger }()

	origCfg := cfg
	cfg = &config.Config{WorkDir: ".", MaxParallel: 4}
	defer func() { cfg = origCfg }()

	planManifest, planOnly, planSkip, planMarketHours = "", nil, nil, false

	require.NoError(t, runPlan(planCmd, nil))

	var header string
	for _, entry := range logs.All() {
		if strings.HasPrefix(entry.Message, "Execution plan:") {
			header = entry.Message
		}
	}
	// The built-in set has nine jobs spread over all four tiers.
	assert.Equal(t, "Execution plan: 9 jobs in 4 tiers", header)
}

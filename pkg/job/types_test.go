package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority(t *testing.T) {
	assert.Equal(t, []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}, Priorities())

	assert.Equal(t, 0, PriorityCritical.Rank())
	assert.Equal(t, 1, PriorityHigh.Rank())
	assert.Equal(t, 2, PriorityMedium.Rank())
	assert.Equal(t, 3, PriorityLow.Rank())
	assert.Equal(t, 4, Priority("urgent").Rank(), "unknown priorities sort last")

	assert.True(t, PriorityCritical.Valid())
	assert.False(t, Priority("urgent").Valid())
	assert.False(t, Priority("").Valid())
}

func TestError(t *testing.T) {
	err := &Error{Kind: ErrExit, Message: "exited with code 2", ExitCode: 2}
	assert.Contains(t, err.Error(), "exited with code 2")

	var asErr error = err
	assert.Error(t, asErr)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestThreadsForTasks tests sizing the serve pool against the task count
// Main test items:
// 1. A limit below the task count is raised to it with a warning
// 2. Unbounded and sufficient limits are kept as configured
func TestThreadsForTasks(t *testing.T) {
	observed, logs := observer.New(zap.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(observed))()

	assert.Equal(t, 4, threadsForTasks(1, 4))
	assert.Equal(t, 1, logs.FilterMessageSnippet("below the task count").Len())

	assert.Equal(t, 0, threadsForTasks(0, 4))
	assert.Equal(t, 4, threadsForTasks(4, 4))
	assert.Equal(t, 8, threadsForTasks(8, 4))
	assert.Equal(t, 1, logs.Len())
}

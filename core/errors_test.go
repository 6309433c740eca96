package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolError_MatchesSentinels(t *testing.T) {
	cause := errors.New("resource exhausted")
	err := fmt.Errorf("push: %w", spawnFailed("workers", cause))

	assert.ErrorIs(t, err, ErrSpawnFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotPrepared)

	var perr *PoolError
	if assert.ErrorAs(t, err, &perr) {
		assert.Equal(t, "workers", perr.Pool)
		assert.Equal(t, PoolErrorSpawnFailed, perr.Kind)
	}
	assert.Equal(t, `task pool "workers": spawn failed: resource exhausted`, perr.Error())
}

func TestPoolError_NotPrepared(t *testing.T) {
	err := notPrepared("idle")

	assert.ErrorIs(t, err, ErrNotPrepared)
	assert.NotErrorIs(t, err, ErrSpawnFailed)
	assert.Equal(t, `task pool "idle": not prepared`, err.Error())
	assert.Equal(t, "unknown", PoolErrorKind(0).String())
}

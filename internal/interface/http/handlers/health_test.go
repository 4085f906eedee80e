package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("test").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "No health checks registered", status.Message)
	assert.Equal(t, "test", status.Version)
}

func TestCompositeHealthChecker_CriticalAndOptional(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("postgres", NewPingCheck(pinger{}))
	c.AddOptionalCheck("redis", NewPingCheck(pinger{err: errors.New("connection refused")}))

	status := c.Check(context.Background())
	assert.True(t, status.Healthy, "optional failure keeps the worker alive")
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: redis", status.Message)
	require.Contains(t, status.Checks, "redis")
	assert.False(t, status.Checks["redis"].Critical)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "OK", status.Checks["postgres"].Message)

	c.AddCheck("scheduler", NewRunningCheck(func() bool { return false }))
	status = c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: redis, scheduler", status.Message)
	assert.Equal(t, ErrSchedulerStopped.Error(), status.Checks["scheduler"].Message)

	c.RemoveCheck("scheduler")
	c.RemoveCheck("redis")
	status = c.Check(context.Background())
	assert.True(t, status.Ready)
	assert.Equal(t, "All checks passed", status.Message)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

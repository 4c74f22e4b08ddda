//go:build linux

package run

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesTrimmedOutput(t *testing.T) {
	out, err := New().Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRun_MissingBinaryIsNotFound(t *testing.T) {
	_, err := New().Run(context.Background(), "definitely-not-a-binary-gz302")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRun_FailureWrapsCommandLine(t *testing.T) {
	_, err := New().Run(context.Background(), "false")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "false")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Run(ctx, "sleep", "10")
	require.Error(t, err)
}

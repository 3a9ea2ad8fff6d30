package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/ntfyc/internal/core/config"
)

type stubProber struct {
	host string
	err  error
}

func (s stubProber) Host() string                 { return s.host }
func (s stubProber) Health(context.Context) error { return s.err }

func TestServerCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		check := NewServerCheck(stubProber{host: "http://localhost:8080"})
		result := check.Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusPass, result.Items[0].Status)
		assert.Equal(t, "http://localhost:8080", result.Items[0].Label)
		assert.Contains(t, result.Items[0].Detail, "healthy")
	})

	t.Run("unreachable", func(t *testing.T) {
		check := NewServerCheck(stubProber{host: "http://localhost:1", err: errors.New("connection refused")})
		result := check.Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
		assert.Equal(t, "connection refused", result.Items[0].Detail)
	})

	t.Run("nil prober", func(t *testing.T) {
		result := NewServerCheck(nil).Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})
}

func TestStorageCheck(t *testing.T) {
	t.Run("missing directory warns", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "absent")
		result := NewStorageCheck(dir).Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusWarn, result.Items[0].Status)
	})

	t.Run("file instead of directory fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		result := NewStorageCheck(path).Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})

	t.Run("writable directory with files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "activity.jsonl"), nil, 0o644))

		result := NewStorageCheck(dir, "activity.jsonl", "topics.json").Run(context.Background())

		require.Len(t, result.Items, 2, "missing topics.json is skipped")
		assert.Equal(t, StatusPass, result.Items[0].Status)
		assert.Equal(t, "activity.jsonl", result.Items[1].Label)
		assert.Equal(t, StatusPass, result.Items[1].Status)
	})
}

func TestConfigCheck(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		result := NewConfigCheck(nil, "").Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})

	t.Run("valid config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()

		result := NewConfigCheck(&cfg, "").Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusPass, result.Items[0].Status)
		assert.Contains(t, result.Items[0].Detail, "mytopic")
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Hooks = []config.Hook{{Pattern: "*", Commands: []string{"true"}}}

		result := NewConfigCheck(&cfg, filepath.Join(cfg.DataDir, "absent.yaml")).Run(context.Background())

		require.Len(t, result.Items, 3)
		assert.Equal(t, "Config file", result.Items[0].Label)
		assert.Contains(t, result.Items[0].Detail, "using defaults")
		assert.Equal(t, "Hooks", result.Items[2].Label)
		assert.Equal(t, "1 configured", result.Items[2].Detail)
	})

	t.Run("warnings reported", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Send.StrictStatus = false

		result := NewConfigCheck(&cfg, "").Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusWarn, result.Items[0].Status)
		assert.Equal(t, "Send (strict_status)", result.Items[0].Label)
	})

	t.Run("invalid topic", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Topic = "not a topic"

		result := NewConfigCheck(&cfg, "").Run(context.Background())

		var failed bool
		for _, item := range result.Items {
			if item.Label == "topic" && item.Status == StatusFail {
				failed = true
			}
		}
		assert.True(t, failed, "expected a failing topic item, got %+v", result.Items)
	})
}

func TestRunAllAndSummary(t *testing.T) {
	checks := []Check{
		NewServerCheck(stubProber{host: "a"}),
		NewServerCheck(stubProber{host: "b", err: errors.New("down")}),
	}

	results := RunAll(context.Background(), checks)
	require.Len(t, results, 2)
	assert.Equal(t, "pass", results[0].Items[0].StatusStr)
	assert.Equal(t, "fail", results[1].Items[0].StatusStr)

	counts := Summarize(results)
	assert.Equal(t, Counts{Passed: 1, Failed: 1}, counts)
	assert.False(t, counts.Healthy())
}


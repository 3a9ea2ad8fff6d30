package hooks

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/ntfyc/internal/core/config"
	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/pkg/executil"
)

func testMessage() messaging.Message {
	return messaging.Message{
		ID:      "abc123",
		Time:    1700000000,
		Event:   messaging.EventMessage,
		Topic:   "alerts-disk",
		Message: "disk is 91% full",
		Title:   "storage",
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{pattern: "*", topic: "anything", want: true},
		{pattern: "alerts-*", topic: "alerts-disk", want: true},
		{pattern: "alerts-*", topic: "builds", want: false},
		{pattern: "build?", topic: "builds", want: true},
		{pattern: "{alerts,builds}", topic: "builds", want: true},
		{pattern: "mytopic", topic: "mytopic", want: true},
		{pattern: "mytopic", topic: "mytopic2", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.topic, func(t *testing.T) {
			got, err := Match(tt.pattern, tt.topic)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunner_Run(t *testing.T) {
	exec := &executil.RecordingExecutor{}
	hooks := []config.Hook{
		{Pattern: "alerts-*", Commands: []string{
			"notify-send {{ .Title | shq }} {{ .Message | shq }}",
			"echo {{ .ID }}",
		}},
		{Pattern: "builds", Commands: []string{"echo never"}},
		{Pattern: "**", Commands: []string{"logger {{ .Topic }}"}},
	}

	var out bytes.Buffer
	r := NewRunner(zerolog.Nop(), exec, hooks, &out, &out)

	require.NoError(t, r.Run(context.Background(), testMessage()))

	cmds := exec.Recorded()
	require.Len(t, cmds, 3)

	assert.Equal(t, "sh", cmds[0].Name)
	assert.Equal(t, []string{"-c", "notify-send 'storage' 'disk is 91% full'"}, cmds[0].Args)
	assert.Equal(t, []string{"-c", "echo abc123"}, cmds[1].Args)
	assert.Equal(t, []string{"-c", "logger alerts-disk"}, cmds[2].Args)

	assert.Contains(t, cmds[0].Env, "NTFY_TOPIC=alerts-disk")
	assert.Contains(t, cmds[0].Env, "NTFY_MESSAGE=disk is 91% full")
	assert.Contains(t, cmds[0].Env, "NTFY_TIME=1700000000")

	assert.Contains(t, out.String(), "hook 1")
	assert.Contains(t, out.String(), "hook 2")
}

func TestRunner_Run_NoHooks(t *testing.T) {
	exec := &executil.RecordingExecutor{}
	r := NewRunner(zerolog.Nop(), exec, nil, nil, nil)

	require.NoError(t, r.Run(context.Background(), testMessage()))
	assert.Empty(t, exec.Recorded())
}

func TestRunner_Run_FailuresDoNotStopOtherCommands(t *testing.T) {
	boom := errors.New("exit status 1")
	exec := &executil.RecordingExecutor{
		Errors: map[string]error{"sh -c false": boom},
	}
	hooks := []config.Hook{
		{Pattern: "*", Commands: []string{"false", "echo {{ .Missing }}", "true"}},
	}

	r := NewRunner(zerolog.Nop(), exec, hooks, nil, nil)
	err := r.Run(context.Background(), testMessage())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "render hook")

	cmds := exec.Recorded()
	require.Len(t, cmds, 2, "the broken template is skipped, the rest run")
	assert.Equal(t, "sh -c false", cmds[0].String())
	assert.Equal(t, "sh -c true", cmds[1].String())
}

func TestRunner_Run_BadPattern(t *testing.T) {
	exec := &executil.RecordingExecutor{}
	hooks := []config.Hook{
		{Pattern: "[oops", Commands: []string{"echo bad"}},
		{Pattern: "*", Commands: []string{"echo good"}},
	}

	r := NewRunner(zerolog.Nop(), exec, hooks, nil, nil)
	err := r.Run(context.Background(), testMessage())

	require.Error(t, err)
	cmds := exec.Recorded()
	require.Len(t, cmds, 1)
	assert.Equal(t, "sh -c echo good", cmds[0].String())
}

func TestRunner_Run_RealShell(t *testing.T) {
	hooks := []config.Hook{
		{Pattern: "*", Commands: []string{`printf '%s|%s' "$NTFY_TOPIC" {{ .Message | shq }}`}},
	}

	var out bytes.Buffer
	r := NewRunner(zerolog.Nop(), &executil.RealExecutor{}, hooks, &out, &out)

	require.NoError(t, r.Run(context.Background(), testMessage()))
	assert.Contains(t, out.String(), "alerts-disk|disk is 91% full")
}

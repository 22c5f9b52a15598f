package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/winnowlabs/winnow/internal/config"
	"github.com/winnowlabs/winnow/internal/message"
)

func ptr[T any](v T) *T { return &v }

const fixtureJSON = `{
	"session_id": "sess-1",
	"context_window_tokens": 9000,
	"messages": [
		{"role": "user", "text": "find the bug"},
		{"role": "assistant", "text": "looking", "thinking": "hmm", "tool_call": {"id": "c1", "name": "grep", "input": {"pattern": "panic"}}},
		{"role": "tool", "tool": "grep", "text": "main.go:12"},
		{"role": "tool", "tool": "screenshot", "image": "file:///shot.png"}
	]
}`

func TestLoadFixtureJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureJSON), 0o644))

	fx, err := loadFixture(path)
	require.NoError(t, err)
	require.Equal(t, "sess-1", fx.SessionID)
	require.Equal(t, 9000, fx.ContextWindowTokens)
	require.Len(t, fx.Messages, 4)

	msgs := fx.history()
	require.Len(t, msgs, 4)
	require.Equal(t, message.User, msgs[0].Role)
	require.Equal(t, "find the bug", msgs[0].Text())

	require.Equal(t, message.Assistant, msgs[1].Role)
	require.Len(t, msgs[1].Parts, 3) // text, thinking, tool call

	require.Equal(t, message.Tool, msgs[2].Role)
	require.Equal(t, "grep", msgs[2].ToolName)

	require.True(t, msgs[3].HasImage())
}

func TestLoadFixtureYAML(t *testing.T) {
	t.Parallel()

	raw := strings.TrimSpace(`
context_window_tokens: 9000
messages:
  - role: user
    text: hello
  - role: tool
    tool: grep
    text: "main.go:12"
`)
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	fx, err := loadFixture(path)
	require.NoError(t, err)
	require.Equal(t, 9000, fx.ContextWindowTokens)
	require.Len(t, fx.Messages, 2)
	require.Equal(t, "grep", fx.Messages[1].Tool)
}

func TestLoadFixtureGzip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(fixtureJSON))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "session.json.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	fx, err := loadFixture(path)
	require.NoError(t, err)
	require.Equal(t, "sess-1", fx.SessionID)
	require.Len(t, fx.Messages, 4)
}

func TestLoadFixtureZstd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(fixtureJSON))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "session.json.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	fx, err := loadFixture(path)
	require.NoError(t, err)
	require.Equal(t, "sess-1", fx.SessionID)
	require.Len(t, fx.Messages, 4)
}

func TestLoadFixtureMissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadFixture(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func replayBuffer(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	c := &cobra.Command{}
	c.SetContext(t.Context())
	var buf bytes.Buffer
	c.SetOut(&buf)
	return c, &buf
}

func TestRunReplayCompaction(t *testing.T) {
	t.Parallel()

	fx := &sessionFixture{
		ContextWindowTokens: 2000,
		Messages: []fixtureMessage{
			{Role: "user", Text: strings.Repeat("a", 4000)},
			{Role: "assistant", Text: strings.Repeat("b", 4000)},
			{Role: "user", Text: strings.Repeat("c", 4000)},
			{Role: "assistant", Text: strings.Repeat("d", 4000)},
		},
	}
	cfg := &config.Config{
		Compaction: &config.Compaction{MaxHistoryShare: ptr(0.5), Parts: ptr(2)},
	}

	c, buf := replayBuffer(t)
	require.NoError(t, runReplay(c, cfg, fx, replayOptions{compact: true, prune: true}))
	golden.RequireEqual(t, buf.Bytes())
}

func TestRunReplayPruning(t *testing.T) {
	t.Parallel()

	fx := &sessionFixture{
		ContextWindowTokens: 1100,
		Messages: []fixtureMessage{
			{Role: "user", Text: "do the thing"},
			{Role: "assistant", Text: "ok"},
			{Role: "tool", Tool: "grep", Text: strings.Repeat("a", 10000)},
			{Role: "assistant", Text: "ok"},
			{Role: "tool", Tool: "read", Text: strings.Repeat("b", 10000)},
			{Role: "assistant", Text: "done"},
		},
	}
	cfg := &config.Config{
		Pruning: &config.Pruning{Mode: "always", KeepLastAssistants: ptr(1)},
	}

	c, buf := replayBuffer(t)
	require.NoError(t, runReplay(c, cfg, fx, replayOptions{prune: true}))
	golden.RequireEqual(t, buf.Bytes())
}

func TestRunReplayFlagOverrides(t *testing.T) {
	t.Parallel()

	// No window in the fixture and none configured: the flags set the
	// whole compaction geometry.
	fx := &sessionFixture{
		Messages: []fixtureMessage{
			{Role: "user", Text: strings.Repeat("a", 4000)},
			{Role: "assistant", Text: strings.Repeat("b", 4000)},
			{Role: "user", Text: strings.Repeat("c", 4000)},
			{Role: "assistant", Text: strings.Repeat("d", 4000)},
		},
	}

	c, buf := replayBuffer(t)
	opts := replayOptions{compact: true, window: 2000, share: 0.5, parts: 2}
	require.NoError(t, runReplay(c, &config.Config{}, fx, opts))

	out := buf.String()
	require.Contains(t, out, "context window: 2,000 tokens")
	require.Contains(t, out, "compaction: dropped 2 chunks (3 messages), kept 1,000 tokens")
}

func TestRunReplayWritesTranscript(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), "result.json")
	fx := &sessionFixture{
		ContextWindowTokens: 128000,
		Messages: []fixtureMessage{
			{Role: "user", Text: "hi"},
			{Role: "tool", Tool: "grep", Text: "out", ToolCall: nil},
		},
	}

	c, _ := replayBuffer(t)
	err := runReplay(c, &config.Config{}, fx, replayOptions{compact: true, prune: true, out: outPath})
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var round sessionFixture
	require.NoError(t, json.Unmarshal(data, &round))
	require.Len(t, round.Messages, 2)
	require.Equal(t, "grep", round.Messages[1].Tool)
	require.Equal(t, "out", round.Messages[1].Text)
}

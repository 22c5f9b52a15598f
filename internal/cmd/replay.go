package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/winnowlabs/winnow/internal/config"
	"github.com/winnowlabs/winnow/internal/history"
	"github.com/winnowlabs/winnow/internal/message"
)

// sessionFixture is a recorded conversation snapshot, as JSON or YAML,
// optionally gzip or zstd compressed.
type sessionFixture struct {
	SessionID           string           `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	ContextWindowTokens int              `json:"context_window_tokens,omitempty" yaml:"context_window_tokens,omitempty"`
	Messages            []fixtureMessage `json:"messages" yaml:"messages"`
}

type fixtureMessage struct {
	Role     string           `json:"role" yaml:"role"`
	Tool     string           `json:"tool,omitempty" yaml:"tool,omitempty"`
	Text     string           `json:"text,omitempty" yaml:"text,omitempty"`
	Thinking string           `json:"thinking,omitempty" yaml:"thinking,omitempty"`
	Image    string           `json:"image,omitempty" yaml:"image,omitempty"`
	ToolCall *fixtureToolCall `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
}

type fixtureToolCall struct {
	ID    string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string         `json:"name" yaml:"name"`
	Input map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
}

type replayOptions struct {
	compact bool
	prune   bool
	window  int
	share   float64
	parts   int
	out     string
}

var replayCmd = &cobra.Command{
	Use:   "replay <session-file>",
	Short: "Run a recorded session through compaction and pruning",
	Long: heredoc.Doc(`
		Replay loads a recorded session, runs it through turn-boundary
		compaction and in-flight pruning with the current configuration, and
		prints what each stage kept and dropped. The session file is JSON or
		YAML, optionally gzip or zstd compressed.
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fx, err := loadFixture(args[0])
		if err != nil {
			return err
		}
		return runReplay(cmd, cfg, fx, loadReplayOptions(cmd))
	},
}

func init() {
	replayCmd.Flags().Bool("compact", true, "Run turn-boundary compaction")
	replayCmd.Flags().Bool("prune", true, "Run in-flight pruning")
	replayCmd.Flags().Int("window", 0, "Override the context window in tokens")
	replayCmd.Flags().Float64("share", 0, "Override the history share compaction may keep")
	replayCmd.Flags().Int("parts", 0, "Override the compaction chunk count")
	replayCmd.Flags().String("out", "", "Write the resulting transcript to a JSON file")
	rootCmd.AddCommand(replayCmd)
}

func loadReplayOptions(cmd *cobra.Command) replayOptions {
	compact, _ := cmd.Flags().GetBool("compact")
	prune, _ := cmd.Flags().GetBool("prune")
	window, _ := cmd.Flags().GetInt("window")
	share, _ := cmd.Flags().GetFloat64("share")
	parts, _ := cmd.Flags().GetInt("parts")
	out, _ := cmd.Flags().GetString("out")
	return replayOptions{
		compact: compact,
		prune:   prune,
		window:  window,
		share:   share,
		parts:   parts,
		out:     out,
	}
}

func loadFixture(path string) (*sessionFixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	switch {
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
		name = strings.TrimSuffix(name, ".zst")
	case strings.HasSuffix(name, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gr.Close()
		r = gr
		name = strings.TrimSuffix(name, ".gz")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	fx := &sessionFixture{}
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		if err := yaml.Unmarshal(data, fx); err != nil {
			return nil, fmt.Errorf("parse session yaml: %w", err)
		}
	} else if err := json.Unmarshal(data, fx); err != nil {
		return nil, fmt.Errorf("parse session json: %w", err)
	}
	return fx, nil
}

// history converts the recorded messages into the engine's message model.
func (f *sessionFixture) history() []message.Message {
	msgs := make([]message.Message, 0, len(f.Messages))
	for _, fm := range f.Messages {
		var parts []message.Part
		if fm.Text != "" {
			parts = append(parts, message.TextPart{Text: fm.Text})
		}
		if fm.Thinking != "" {
			parts = append(parts, message.ThinkingPart{Thinking: fm.Thinking})
		}
		if fm.Image != "" {
			parts = append(parts, message.ImagePart{URL: fm.Image})
		}
		if fm.ToolCall != nil {
			parts = append(parts, message.ToolCallPart{
				ID:    fm.ToolCall.ID,
				Name:  fm.ToolCall.Name,
				Input: fm.ToolCall.Input,
			})
		}
		m := message.New(message.Role(fm.Role), parts...)
		m.ToolName = fm.Tool
		msgs = append(msgs, m)
	}
	return msgs
}

func runReplay(cmd *cobra.Command, cfg *config.Config, fx *sessionFixture, opts replayOptions) error {
	// Flag overrides win over the fixture, which wins over config.
	window := opts.window
	if window <= 0 {
		window = fx.ContextWindowTokens
	}
	if window <= 0 {
		window = cfg.ContextWindow()
	}
	req := cfg.CompactionRequest()
	if opts.share > 0 {
		req.MaxHistoryShare = opts.share
	}
	if opts.parts > 0 {
		req.Parts = opts.parts
	}

	msgs := fx.history()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "context window: %s tokens\n", humanize.Comma(int64(window)))
	fmt.Fprintf(out, "history: %d messages, %s tokens estimated\n",
		len(msgs), humanize.Comma(int64(history.ContextTokens(msgs))))

	mgr := history.NewManager(
		history.WithDefaultSettings(cfg.PruneSettings()),
		history.WithContextWindow(window),
		history.WithCompaction(req.MaxHistoryShare, req.Parts),
	)
	defer mgr.Shutdown()

	sessionID := fx.SessionID
	if sessionID == "" {
		sessionID = "replay"
	}
	mgr.StartSession(sessionID)
	defer mgr.EndSession(sessionID)

	if opts.compact {
		res := mgr.CompactHistory(cmd.Context(), sessionID, msgs)
		fmt.Fprintf(out, "compaction: dropped %d chunks (%d messages), kept %s tokens\n",
			res.DroppedChunks, res.DroppedMessages, humanize.Comma(int64(res.KeptTokens)))
		msgs = res.Messages
	}
	if opts.prune {
		events := mgr.SubscribePrunes(cmd.Context())
		msgs = mgr.PrepareContext(cmd.Context(), sessionID, msgs)
		select {
		case ev := <-events:
			fmt.Fprintf(out, "pruning: soft trimmed %d, hard cleared %d, now %s of %s budget chars\n",
				ev.Payload.SoftTrimmed, ev.Payload.HardCleared,
				humanize.Comma(int64(ev.Payload.Chars)), humanize.Comma(int64(ev.Payload.BudgetChars)))
		default:
			fmt.Fprintln(out, "pruning: no changes")
		}
	}

	fmt.Fprintf(out, "result: %d messages, %s tokens estimated\n",
		len(msgs), humanize.Comma(int64(history.ContextTokens(msgs))))

	if opts.out != "" {
		if err := writeTranscript(opts.out, msgs); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", opts.out)
	}
	return nil
}

func writeTranscript(path string, msgs []message.Message) error {
	fms := make([]fixtureMessage, 0, len(msgs))
	for _, m := range msgs {
		fm := fixtureMessage{Role: string(m.Role), Tool: m.ToolName, Text: m.Text()}
		for _, p := range m.Parts {
			switch p := p.(type) {
			case message.ThinkingPart:
				fm.Thinking = p.Thinking
			case message.ImagePart:
				fm.Image = p.URL
			case message.ToolCallPart:
				input, _ := p.Input.(map[string]any)
				fm.ToolCall = &fixtureToolCall{ID: p.ID, Name: p.Name, Input: input}
			}
		}
		fms = append(fms, fm)
	}
	data, err := json.MarshalIndent(sessionFixture{Messages: fms}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

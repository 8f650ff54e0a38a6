package cmd

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/stream"
)

var (
	generateVendor vendorFlags
	generatePrompt string
	generateQuiet  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Edit a component with the AI generation service",
	Long: `Send a prompt and the component source to the generation service and
stream the generated code to stdout as it arrives. A complete generation
replaces the file. A generation that fails after producing code still writes
the partial code and reports the failure.

Examples:
  storefront generate hero.component --prompt "add a testimonials section"
  storefront generate hero.component --prompt "make it darker" --quiet`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	addVendorFlags(generateCmd.Flags(), &generateVendor)
	generateCmd.Flags().StringVarP(&generatePrompt, "prompt", "m", "", "What to change")
	generateCmd.Flags().BoolVarP(&generateQuiet, "quiet", "q", false, "Do not stream code to stdout")
	generateCmd.Flags().String("ai-url", "", "Generation service endpoint")
	generateCmd.MarkFlagRequired("prompt")
	generateCmd.PreRunE = bindFlags(map[string]string{"ai.url": "ai-url"})
}

// typewriterOut reveals streamed code on w at the typewriter pace.
type typewriterOut struct {
	acc  *stream.Accumulator
	tw   *stream.Typewriter
	stop context.CancelFunc
	done chan struct{}
}

func startTypewriter(ctx context.Context, w io.Writer, interval time.Duration) *typewriterOut {
	acc := stream.NewAccumulator(nil)
	ctx, cancel := context.WithCancel(ctx)
	t := &typewriterOut{
		acc:  acc,
		tw:   stream.NewTypewriter(acc, interval),
		stop: cancel,
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		printed := 0
		t.tw.Run(ctx, func(visible string) {
			if len(visible) > printed {
				io.WriteString(w, visible[printed:])
				printed = len(visible)
			}
		})
	}()

	return t
}

// finish waits up to limit for the typewriter to catch up, then stops it.
func (t *typewriterOut) finish(limit time.Duration) {
	deadline := time.Now().Add(limit)
	for !t.tw.Caught() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	t.stop()
	<-t.done
}

func generationObserver(ctx context.Context, logger logging.Logger, out *typewriterOut) stream.Observer {
	return func(ev stream.Event) {
		switch e := ev.(type) {
		case stream.CodeChunkEvent:
			if out != nil {
				out.acc.Append(e.Chunk)
			}
		case stream.StatusEvent:
			logger.Info(ctx, e.Message)
		case stream.ToolStartEvent:
			logger.Info(ctx, "Running tool", "tool", e.Tool, "message", e.Message)
		case stream.ToolResultEvent:
			logger.Debug(ctx, "Tool finished", "tool", e.Tool, "result", logging.Truncate(e.Result, 120))
		case stream.ThinkingEvent:
			logger.Debug(ctx, "Thinking", "text", logging.Truncate(e.Text, 120))
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	path := args[0]

	src, err := editor.ReadFile(path)
	if err != nil {
		return err
	}

	store, err := backup.Open(cfg.BackupStore())
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := sessionOptions(cfg, store, logger)
	if err != nil {
		return err
	}
	opts.Vendor = generateVendor.vendor()
	opts.Source = src

	session, err := editor.New("cli", opts)
	if err != nil {
		return err
	}
	defer session.Close()

	var out *typewriterOut
	if !generateQuiet {
		out = startTypewriter(ctx, cmd.OutOrStdout(), cfg.AI.TypewriterInterval)
	}

	res, genErr := session.Generate(ctx, editor.GenerateRequest{Prompt: generatePrompt}, generationObserver(ctx, logger, out))

	if out != nil {
		out.finish(2 * time.Second)
		io.WriteString(cmd.OutOrStdout(), "\n")
	}

	if genErr != nil && !(res.Partial && res.Code != "") {
		return genErr
	}

	if err := editor.WriteFile(path, session.Source()); err != nil {
		return err
	}

	if genErr != nil {
		logger.Warn(ctx, genErr, "Generation failed, partial code was written", "file", path)
		return genErr
	}
	logger.Info(ctx, "Generation applied", "file", path, "conversation", res.ConversationID)
	return nil
}

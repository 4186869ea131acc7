package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clover/internal/config"
	"clover/internal/engine"
	"clover/internal/session"
)

type generateOptions struct {
	system string
	raw    bool
	stats  bool
}

func newGenerateCmd(g *globalOptions) *cobra.Command {
	o := &generateOptions{}
	cmd := &cobra.Command{
		Use:     "generate [prompt]",
		Short:   "Load a model and stream one generation to stdout",
		Example: "  clover generate --model ./tiny.gguf \"Write a haiku about the sea\"\n  echo hi | clover generate --model qwen.gguf --prompt-format chatml",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g.configPath, cmd.Flags(), g.flags)
			if err != nil {
				return err
			}
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGenerate(ctx, cfg, nil, o, prompt, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addSessionFlags(cmd, &g.flags)
	f := cmd.Flags()
	f.StringVar(&o.system, "system", "", "System prompt (chatml format only)")
	f.BoolVar(&o.raw, "raw", false, "Print the raw buffer including the stats marker")
	f.BoolVar(&o.stats, "stats", true, "Print throughput to stderr when done")
	return cmd
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	p := strings.TrimRight(string(b), "\n")
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("prompt is required (argument or stdin)")
	}
	return p, nil
}

// runGenerate drives the session directly. Interrupting the context raises
// the stop flag so the partial text is still printed with its stats.
func runGenerate(ctx context.Context, cfg config.Config, backend engine.Backend, o *generateOptions, prompt string, stdout, stderr io.Writer) error {
	if cfg.ModelPath == "" {
		return fmt.Errorf("--model is required")
	}
	log := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	st, err := buildStack(cfg, backend, log, nil)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()

	if _, err := st.svc.Load(ctx, loadRequestFor(cfg.ModelPath)); err != nil {
		return err
	}

	stopWatch := context.AfterFunc(ctx, st.sess.Stop)
	defer stopWatch()

	req := session.Request{
		Prompt:       prompt,
		SystemPrompt: o.system,
		MaxTokens:    cfg.MaxNewTokens(),
		ContextSize:  cfg.ContextSize,
		Threads:      cfg.Threads,
	}
	if o.raw {
		buf := st.sess.GenerateBytes(context.WithoutCancel(ctx), req, nil)
		if len(buf) == 0 {
			return fmt.Errorf("generation failed: %s", st.sess.Status().LastError)
		}
		_, err := stdout.Write(buf)
		return err
	}

	sink := session.SinkFunc(func(p []byte) { _, _ = stdout.Write(p) })
	res, err := st.sess.Generate(context.WithoutCancel(ctx), req, sink)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	if o.stats {
		fmt.Fprintf(stderr, "stop=%s prompt_tokens=%d generated=%d ingest=%.2f tok/s generate=%.2f tok/s ctx=%d\n",
			res.StopReason, res.Stats.PromptTokens, res.Stats.GeneratedTokens,
			res.Stats.IngestTPS, res.Stats.GenerateTPS, res.Window.Size)
	}
	return nil
}

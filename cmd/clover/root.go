package main

import (
	"os"

	"github.com/spf13/cobra"

	"clover/internal/config"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	flags      config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "clover",
		Short:         "Single-session local text generation over GGUF models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", os.Getenv("CLOVER_CONFIG"), "Config file (.yaml, .json or .toml)")
	pf.StringVar(&g.flags.LogLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	pf.StringVar(&g.flags.LogFormat, "log-format", config.DefaultLogFormat, "Log format: json|console")
	pf.StringVar(&g.flags.LibPath, "lib-path", "", "Directory holding the llama.cpp shared libraries (default $CLOVER_LIB or ./lib/llama)")
	pf.StringVar(&g.flags.ModelsDir, "models-dir", "~/models/llm", "Directory to scan for *.gguf model files")

	root.AddCommand(newServeCmd(g), newGenerateCmd(g), newInspectCmd(), newModelsCmd(g))

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	root.AddCommand(completionCmd)
	return root
}

// addSessionFlags registers the flags shared by serve and generate.
func addSessionFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	f.StringVar(&c.ModelPath, "model", "", "Model to load at startup: registry id or path")
	f.IntVar(&c.ContextSize, "context-size", config.DefaultContextSize, "Default context window in tokens")
	f.IntVar(&c.Threads, "threads", config.DefaultThreads, "Default worker threads")
	c.MaxTokens = new(int)
	f.IntVar(c.MaxTokens, "max-tokens", config.DefaultMaxTokens, "Default maximum new tokens; 0 generates nothing")
	f.IntVar(&c.ChunkSize, "chunk-size", config.DefaultChunkSize, "Prompt tokens per ingestion decode")
	f.IntVar(&c.TopK, "top-k", config.DefaultTopK, "Top-k sampling cutoff")
	f.Float64Var(&c.Temperature, "temperature", config.DefaultTemperature, "Sampling temperature")
	f.StringVar(&c.PromptFormat, "prompt-format", config.DefaultPromptFormat, "Prompt format: raw|chatml")
}

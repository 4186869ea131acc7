package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clover/internal/registry"
)

func newModelsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List GGUF models in the models directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g.configPath, cmd.Flags(), g.flags)
			if err != nil {
				return err
			}
			models, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFAMILY\tQUANT\tCTX\tSIZE")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Family, m.Quant, m.ContextLength, humanBytes(m.SizeBytes))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.gguf>",
		Short: "Copy a GGUF file into the models directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(g, cmd, func(c *registry.Catalog) error {
				m, err := c.Import(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", m.ID, humanBytes(m.SizeBytes))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a model file from the models directory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(g, cmd, func(c *registry.Catalog) error {
				if err := c.Remove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func withCatalog(g *globalOptions, cmd *cobra.Command, fn func(*registry.Catalog) error) error {
	cfg, err := resolveConfig(g.configPath, cmd.Flags(), g.flags)
	if err != nil {
		return err
	}
	c := registry.NewCatalog(cfg.ModelsDir, nil)
	defer c.Close()
	return fn(c)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"clover/internal/common/fsutil"
	"clover/internal/gguf"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <model.gguf>",
		Short: "Print GGUF metadata without loading weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := fsutil.ExpandHome(args[0])
			if err != nil {
				return err
			}
			md, err := gguf.ReadFile(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeMetadataJSON(cmd.OutOrStdout(), md)
			}
			return writeMetadataTable(cmd.OutOrStdout(), md)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func displayValue(v gguf.Value) string {
	if a, ok := v.Value.(gguf.ArrayInfo); ok {
		return fmt.Sprintf("[%s x %d]", a.ElemType, a.Len)
	}
	return fmt.Sprint(v.Value)
}

func writeMetadataTable(w io.Writer, md *gguf.Metadata) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "version\t%d\n", md.Version)
	fmt.Fprintf(tw, "tensors\t%d\n", md.TensorCount)
	if q := md.FileType(); q != "" {
		fmt.Fprintf(tw, "quant\t%s\n", q)
	}
	fmt.Fprintln(tw, "")
	for _, k := range md.Keys {
		v := md.KV[k]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, v.Type, displayValue(v))
	}
	return tw.Flush()
}

type metadataJSON struct {
	Version     uint32            `json:"version"`
	TensorCount uint64            `json:"tensor_count"`
	Quant       string            `json:"quant,omitempty"`
	KV          map[string]string `json:"kv"`
}

func writeMetadataJSON(w io.Writer, md *gguf.Metadata) error {
	out := metadataJSON{Version: md.Version, TensorCount: md.TensorCount, Quant: md.FileType(), KV: make(map[string]string, len(md.KV))}
	for k, v := range md.KV {
		out.KV[k] = displayValue(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

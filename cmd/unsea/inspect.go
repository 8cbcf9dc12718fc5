package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/unsea/unsea"
	"github.com/unsea/unsea/restore"
	"github.com/unsea/unsea/seablob"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <executable>",
	Short: "Show what an executable has embedded without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, args[0])
	},
}

// runInspect prints the container format, the resource span and a table of
// the embedded artifacts with their sizes and digests.
func runInspect(cmd *cobra.Command, path string) error {
	exe, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format, span, err := unsea.Locate(exe)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	blob, err := seablob.Decode(exe[span.Offset : span.Offset+span.Length])
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "format:    %s\n", format)
	fmt.Fprintf(out, "resource:  %d bytes at offset %d\n", span.Length, span.Offset)
	fmt.Fprintf(out, "flags:     %s\n", blob.Flags)
	fmt.Fprintf(out, "code path: %s\n", blob.CodePath)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tSIZE\tDIGEST")
	fmt.Fprintf(w, "source\t%s\t%d\t%s\n",
		restore.SourceFile, len(blob.Source), digest.FromString(blob.Source))
	if blob.CodeCache != nil {
		fmt.Fprintf(w, "code cache\t%s\t%d\t%s\n",
			restore.CodeCacheFile, len(blob.CodeCache), digest.FromBytes(blob.CodeCache))
	}
	for _, a := range blob.Assets {
		fmt.Fprintf(w, "asset\t%s\t%d\t%s\n", a.Name, len(a.Data), digest.FromBytes(a.Data))
	}
	return w.Flush()
}

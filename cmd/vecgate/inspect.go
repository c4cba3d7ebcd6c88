package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecgate"
	"github.com/hupe1980/vecgate/index"
	"github.com/hupe1980/vecgate/internal/compress"
	"github.com/hupe1980/vecgate/persistence"
)

func newInspectCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "inspect PATH",
		Short: "Print the header of a local index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := inspect(cmd.OutOrStdout(), args[0]); err != nil {
				return err
			}
			if !verify {
				return nil
			}
			h, err := vecgate.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer h.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "verified: %d live vectors\n", h.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "load the index and verify its checksum")
	return cmd
}

func inspect(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	h, err := persistence.ReadHeader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(w, "file:        %s (%s)\n", path, humanize.IBytes(uint64(st.Size())))
	fmt.Fprintf(w, "type:        %s\n", persistence.IndexTypeName(h.IndexType))
	fmt.Fprintf(w, "metric:      %s\n", index.Metric(h.Metric))
	fmt.Fprintf(w, "compression: %s\n", compress.Type(h.Compression))
	fmt.Fprintf(w, "dimension:   %d\n", h.Dimension)
	fmt.Fprintf(w, "rows:        %s\n", humanize.Comma(int64(h.VectorCount)))
	fmt.Fprintf(w, "vectors:     %s\n", humanize.IBytes(h.VectorBytes))
	fmt.Fprintf(w, "labels:      %s\n", humanize.IBytes(h.LabelBytes))
	fmt.Fprintf(w, "tombstones:  %s\n", humanize.IBytes(h.TombstoneBytes))
	fmt.Fprintf(w, "checksum:    %08x\n", h.Checksum)
	return nil
}

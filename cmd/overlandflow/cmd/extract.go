package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spf13/cobra"

	"github.com/oshokin/overlandflow/internal/logger"
	"github.com/oshokin/overlandflow/internal/output"
	"github.com/oshokin/overlandflow/internal/simerr"
)

var (
	// record is the record index to extract; negative values count from the end.
	record int
	// scale multiplies every extracted value.
	scale float64

	// extractCmd prints one record of a field stored by a run.
	extractCmd = &cobra.Command{
		Use:   "extract <netcdf-file> <variable>",
		Short: "Print one record of a field from a NetCDF output file.",
		Long: `Prints one record of a variable written with --output as a table.

Point fields are printed one grid row per line, northernmost row first. Edge
fields are printed on a single line and domain fields as a single value.
Variables of edge and domain fields carry an _at_edge or _at_domain suffix.
The last record is printed unless --record is given; --record -2 is the one
before last. --scale converts units, e.g. --scale 1000 for depths in mm.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), "extract")

			data, t, err := output.ReadRecord(args[0], args[1], record)
			if err != nil {
				return err
			}

			logger.DebugKV(ctx, "Record read", "variable", args[1], "record", record, "time", t, "shape", data.Shape)

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s at t=%s s\n", args[1], formatValue(t))
			if err != nil {
				return err
			}

			return writeTable(cmd.OutOrStdout(), data, scale)
		},
	}
)

// writeTable prints a one- or two-dimensional array with values multiplied by
// factor. Two-dimensional arrays are printed last row first.
func writeTable(w io.Writer, data *sparse.DenseArray, factor float64) error {
	var lines [][]float64

	switch len(data.Shape) {
	case 0:
		lines = [][]float64{{data.Elements[0]}}
	case 1:
		lines = [][]float64{data.Elements}
	case 2:
		rows, cols := data.Shape[0], data.Shape[1]
		for r := rows - 1; r >= 0; r-- {
			lines = append(lines, data.Elements[r*cols:(r+1)*cols])
		}
	default:
		return simerr.Configurationf("cannot print a %d-dimensional array", len(data.Shape))
	}

	for _, line := range lines {
		cells := make([]string, len(line))
		for i, v := range line {
			cells[i] = formatValue(v * factor)
		}

		if _, err := fmt.Fprintln(w, strings.Join(cells, " ")); err != nil {
			return err
		}
	}

	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	extractCmd.Flags().IntVarP(&record, "record", "r", -1, "record to print, negative values count from the end")
	extractCmd.Flags().Float64VarP(&scale, "scale", "s", 1, "factor applied to every value")
}

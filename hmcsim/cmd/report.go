package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hmcsim/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report <recording.sqlite3>",
	Short: "Print the final statistics of recorded runs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return err
		}

		r := datarecording.NewReader(args[0])
		defer r.Close()

		return printSummaries(cmd.Context(), cmd.OutOrStdout(), r)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func printSummaries(
	ctx context.Context,
	out io.Writer,
	r datarecording.DataReader,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sums, err := datarecording.Summaries(ctx, r)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	for _, s := range sums {
		f := s.Final
		fmt.Fprintf(w, "run %s\t%s\n", s.RunID, s.Info["Command"])
		fmt.Fprintf(w, "cycles\t%d\n", f.EndCycle-f.StartCycle)
		fmt.Fprintf(w, "reads/writes/atomics\t%d/%d/%d\n",
			f.Reads, f.Writes, f.Atomics)
		fmt.Fprintf(w, "bandwidth\t%.3f GB/s\n", f.Bandwidth)
		fmt.Fprintf(w, "latency\tmean %.2f std %.2f max %.0f\n",
			f.TranLatMean, f.TranLatStd, f.TranLatMax)
		fmt.Fprintf(w, "link errors\t%d\n", f.Errors)
		fmt.Fprintf(w, "link power\t%.1f mW\tsleep %.1f%%\tdown %.1f%%\n",
			f.ActivePower+f.SleepPower+f.DownPower, f.SleepRatio, f.DownRatio)

		for _, l := range s.Links {
			fmt.Fprintf(w, "link %d\tdown %.3f GB/s\tup %.3f GB/s\t"+
				"retry failures %d\tsleep %d\n",
				l.Link, l.DownBandwidth, l.UpBandwidth,
				l.RetryFailures, l.SleepCycles)
		}

		fmt.Fprintln(w)
	}

	return w.Flush()
}

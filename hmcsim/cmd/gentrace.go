package cmd

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hmcsim/tracegen"
)

type gentraceOptions struct {
	cycles  uint64
	util    float64
	rwRatio float64
	size    int
	seed    int64
	dir     string
}

var gentraceOpts gentraceOptions

var gentraceCmd = &cobra.Command{
	Use:   "gentrace",
	Short: "Write a random trace file.",
	RunE: func(_ *cobra.Command, _ []string) error {
		name, n, err := generateTrace(gentraceOpts)
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"file":     name,
			"requests": n,
		}).Info("trace written")

		return nil
	},
}

func init() {
	f := gentraceCmd.Flags()
	f.Uint64VarP(&gentraceOpts.cycles, "cycle", "c", 100000,
		"The number of host cycles the trace spans")
	f.Float64VarP(&gentraceOpts.util, "util", "u", 0.1,
		"Request frequency (0 to 1)")
	f.Float64VarP(&gentraceOpts.rwRatio, "rwratio", "r", 80,
		"The percentage of reads")
	f.IntVarP(&gentraceOpts.size, "size", "s", 32,
		"Request size in bytes")
	f.Int64Var(&gentraceOpts.seed, "seed", 1, "Random seed")
	f.StringVarP(&gentraceOpts.dir, "output", "o", ".",
		"Directory of the trace file")

	rootCmd.AddCommand(gentraceCmd)
}

func generateTrace(o gentraceOptions) (string, int, error) {
	if o.util < 0 || o.util > 1 {
		return "", 0, fmt.Errorf("--util must be between 0 and 1")
	}

	if o.rwRatio < 0 || o.rwRatio > 100 {
		return "", 0, fmt.Errorf("--rwratio is a percentage")
	}

	f, err := tracegen.CreateTraceFile(o.dir)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	src := tracegen.NewRandomSource(rand.New(rand.NewSource(o.seed)),
		o.util, o.rwRatio, o.size)
	reqs := src.Generate(o.cycles)

	w := tracegen.NewWriter(f)
	for _, r := range reqs {
		if err := w.Write(r); err != nil {
			return "", 0, err
		}
	}

	if err := w.Flush(); err != nil {
		return "", 0, err
	}

	return f.Name(), len(reqs), nil
}

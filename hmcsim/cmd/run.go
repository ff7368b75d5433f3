package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/datarecording"
	"github.com/sarchlab/hmcsim/hmc"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/monitoring"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/stats"
	"github.com/sarchlab/hmcsim/tracegen"
)

type runOptions struct {
	cycles     uint64
	traceType  string
	util       float64
	rwRatio    float64
	traceFile  string
	randomSize bool

	iniFile  string
	yamlFile string
	dotenv   string

	record      string
	monitor     bool
	monitorPort int
	openMonitor bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := runOpts.check(); err != nil {
			return err
		}

		_, err := runSimulation(cmd.Context(), runOpts)

		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.Uint64VarP(&runOpts.cycles, "cycle", "c", 100000,
		"The number of host cycles to simulate")
	f.StringVarP(&runOpts.traceType, "trace", "t", "random",
		"Trace type ('random' or 'file')")
	f.Float64VarP(&runOpts.util, "util", "u", 0.1,
		"Request frequency (0 = no requests, 1 = one request per cycle)")
	f.Float64VarP(&runOpts.rwRatio, "rwratio", "r", 80,
		"The percentage of reads in the request stream")
	f.StringVarP(&runOpts.traceFile, "file", "f", "", "Trace file name")
	f.BoolVar(&runOpts.randomSize, "random-size", false,
		"Give random requests a random valid size")
	f.StringVar(&runOpts.iniFile, "config", "",
		"INI configuration file (KEY = value)")
	f.StringVar(&runOpts.yamlFile, "yaml", "", "YAML configuration file")
	f.StringVar(&runOpts.dotenv, "env", ".env",
		"dotenv file with HMCSIM_<KEY> overrides")
	f.StringVar(&runOpts.record, "record", "",
		"Record results into a SQLite file or a clickhouse:// URL")
	f.BoolVar(&runOpts.monitor, "monitor", false,
		"Serve a web monitor for the simulation")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the web monitor (0 picks a free port)")
	f.BoolVar(&runOpts.openMonitor, "open-monitor", false,
		"Open the web monitor in a browser")

	rootCmd.AddCommand(runCmd)
}

func (o runOptions) check() error {
	switch o.traceType {
	case "random":
	case "file":
		if o.traceFile == "" {
			return fmt.Errorf("--trace file needs --file")
		}
	default:
		return fmt.Errorf("--trace must be 'random' or 'file', not %q",
			o.traceType)
	}

	if o.util < 0 || o.util > 1 {
		return fmt.Errorf("--util must be between 0 and 1")
	}

	if o.rwRatio < 0 || o.rwRatio > 100 {
		return fmt.Errorf("--rwratio is a percentage")
	}

	if o.iniFile != "" && o.yamlFile != "" {
		return fmt.Errorf("--config and --yaml cannot be used together")
	}

	return nil
}

func loadConfig(o runOptions) (*config.Config, error) {
	cfg := config.Default()

	var err error

	switch {
	case o.iniFile != "":
		cfg, err = config.LoadINI(o.iniFile)
	case o.yamlFile != "":
		cfg, err = config.LoadYAML(o.yamlFile)
	}

	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(o.dotenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func openSource(o runOptions, cfg *config.Config) (
	src tracegen.Source,
	depth int,
	closeFn func(),
	err error,
) {
	if o.traceType == "random" {
		rs := tracegen.NewRandomSource(rand.New(rand.NewSource(cfg.Seed)),
			o.util, o.rwRatio, cfg.TransactionSize)
		if o.randomSize {
			rs.WithRandomSize()
		}

		return rs, 0, func() {}, nil
	}

	f, err := os.Open(o.traceFile)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("could not open trace file: %w", err)
	}

	return tracegen.NewReader(f, cfg.TransactionSize), 1,
		func() { f.Close() }, nil
}

func openRecorder(target string) (datarecording.DataRecorder, error) {
	if !strings.HasPrefix(target, "clickhouse://") {
		return datarecording.New(strings.TrimSuffix(target, ".sqlite3")), nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("bad ClickHouse URL: %w", err)
	}

	port := 9000
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad ClickHouse port: %w", err)
		}
	}

	password, _ := u.User.Password()

	return datarecording.NewClickHouseRecorder(datarecording.ClickHouseOptions{
		Host:     u.Hostname(),
		Port:     port,
		Database: strings.TrimPrefix(u.Path, "/"),
		Username: u.User.Username(),
		Password: password,
	})
}

// attachLogHooks turns on the event logs selected by DEBUG_SIM and
// STATE_SIM. With ONLY_CR only link errors and failed retries are logged.
func attachLogHooks(s *hmc.Simulator, cfg *config.Config) {
	logger := logrus.StandardLogger()

	if cfg.DebugSim {
		if logger.GetLevel() < logrus.DebugLevel {
			logger.SetLevel(logrus.DebugLevel)
		}

		if !cfg.OnlyCR {
			s.AcceptHook(hooking.NewLogHook(logger, logrus.DebugLevel,
				signal.HookPosLinkTransfer,
				signal.HookPosCommandIssue,
				signal.HookPosTransactionRetire))
		}
	}

	if cfg.StateSim && !cfg.OnlyCR {
		s.AcceptHook(hooking.NewLogHook(logger, logrus.InfoLevel,
			signal.HookPosLinkState,
			signal.HookPosRetryFinish))
	}

	if cfg.DebugSim || cfg.StateSim {
		s.AcceptHook(hooking.NewLogHook(logger, logrus.WarnLevel,
			signal.HookPosLinkError,
			signal.HookPosRetryAbandoned))
	}
}

func runSimulation(ctx context.Context, o runOptions) (stats.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return stats.Report{}, err
	}

	s, err := hmc.New(cfg)
	if err != nil {
		return stats.Report{}, err
	}

	if !cfg.DensityMatches() {
		logrus.WithFields(logrus.Fields{
			"density_gb":  cfg.MemoryDensity,
			"geometry_gb": float64(cfg.Capacity()) / (1 << 30),
		}).Warn("MEMORY_DENSITY does not match the vault geometry")
	}

	attachLogHooks(s, cfg)

	collector := stats.NewCollector(cfg.NumLinks, cfg.CPUClockPeriod)
	collector.SetPowerModel(stats.PowerModelOf(cfg))
	collector.OnReport(func(r stats.Report) {
		stats.Log(logrus.StandardLogger(), r)
	})
	s.AcceptHook(collector)

	if o.record != "" {
		backend, err := openRecorder(o.record)
		if err != nil {
			return stats.Report{}, err
		}

		rec := datarecording.NewRecorder(backend, cfg)
		defer rec.Close()

		collector.OnReport(rec.RecordReport)
		collector.OnSample(rec.RecordSample)
		s.AcceptHook(rec)
	}

	src, depth, closeSrc, err := openSource(o, cfg)
	if err != nil {
		return stats.Report{}, err
	}
	defer closeSrc()

	driver := tracegen.NewDriver(src, depth)

	var monitor *monitoring.Monitor

	if o.monitor {
		monitor, err = startMonitor(s, o)
		if err != nil {
			return stats.Report{}, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"cycles": o.cycles,
		"trace":  o.traceType,
		"links":  cfg.NumLinks,
		"vaults": cfg.NumVaults,
	}).Info("starting simulation")

	err = drive(ctx, s, driver, o.cycles, monitor)

	if closeErr := s.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return stats.Report{}, err
	}

	logrus.WithField("issued", driver.Issued()).Info("simulation complete")

	return collector.Final(), nil
}

func startMonitor(s *hmc.Simulator, o runOptions) (*monitoring.Monitor, error) {
	m := monitoring.NewMonitor().WithPortNumber(o.monitorPort)
	m.RegisterSimulation(s)

	addr, err := m.StartServer()
	if err != nil {
		return nil, err
	}

	if o.openMonitor {
		if err := browser.OpenURL(addr); err != nil {
			logrus.WithError(err).Warn("cannot open the monitor")
		}
	}

	return m, nil
}

func drive(
	ctx context.Context,
	s *hmc.Simulator,
	driver *tracegen.Driver,
	cycles uint64,
	monitor *monitoring.Monitor,
) error {
	var bar *monitoring.ProgressBar
	if monitor != nil {
		bar = monitor.CreateProgressBar("Cycles", cycles)
		defer monitor.CompleteProgressBar(bar)
	}

	var err error

	step := func() {
		_, err = driver.Tick(s.Now(), s)
		s.Advance()
	}

	for i := uint64(0); i < cycles; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if monitor != nil {
			monitor.Step(step)
			bar.IncrementFinished(1)
			bar.SetWaiting(driver.Pending())
		} else {
			step()
		}

		if err != nil {
			return err
		}
	}

	return nil
}

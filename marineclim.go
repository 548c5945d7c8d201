package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rtm0/marineclim/internal/apperr"
	"github.com/rtm0/marineclim/internal/config"
	"github.com/rtm0/marineclim/internal/grid"
	"github.com/rtm0/marineclim/internal/observability"
	"github.com/rtm0/marineclim/internal/vm"
)

type command struct {
	name  string
	help  string
	setup func(fs *flag.FlagSet) func(ctx context.Context, a *app) error
}

var commands = []command{
	{"climatology", "monthly and overall annual mean/count layers of one or more variables", climatologyCmd},
	{"peak", "maximum over time of the magnitude of a vector field", peakCmd},
	{"fetch", "download a product subset from the data service", fetchCmd},
	{"catalog", "list the known product presets", catalogCmd},
}

// app carries what every command needs.
type app struct {
	args    []string
	logger  *slog.Logger
	metrics *observability.Metrics
	stdout  io.Writer

	vmInsertURL   string
	metricPrefix  string
	recsPerInsert int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: marineclim <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run marineclim <command> -h for the flags of a command.")
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	logCfg := config.LoadLogging()
	fs := flag.NewFlagSet("marineclim "+cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&logCfg.Level, "log-level", logCfg.Level, "log level: debug, info, warn or error")
	fs.StringVar(&logCfg.Format, "log-format", logCfg.Format, "log format: text or json")
	metricsFile := fs.String("metrics-file", "", "write run metrics to this file in Prometheus text format")
	a := &app{args: args, stdout: stdout, metrics: observability.NewMetrics()}
	fs.StringVar(&a.vmInsertURL, "vmInsertUrl", "", "optional Victoria Metrics insert API URL to export the output layers to, e.g. http://localhost:8428/write")
	fs.StringVar(&a.metricPrefix, "metricPrefix", "marineclim", "metric name used for exported layers")
	fs.IntVar(&a.recsPerInsert, "recsPerInsert", 500, "number of layer cells sent to Victoria Metrics in one batch")
	execute := cmd.setup(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger, err := observability.NewLogger(logCfg, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	a.logger = logger

	start := observability.Now()
	err = execute(ctx, a)
	a.metrics.RunDuration.WithLabelValues(cmd.name).Set(observability.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else {
		a.metrics.LastSuccess.WithLabelValues(cmd.name).Set(float64(observability.Now().Unix()))
	}
	a.metrics.RunsTotal.WithLabelValues(cmd.name, outcome).Inc()
	if *metricsFile != "" {
		if werr := a.metrics.WriteTextfile(*metricsFile); werr != nil {
			logger.Error("Could not write metrics", "path", *metricsFile, "err", werr)
		}
	}

	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			logger.Error("Run failed", "command", cmd.name, "kind", ae.Kind.String(), "err", err)
			return 1
		}
		logger.Error("Run failed", "command", cmd.name, "err", err)
		return 1
	}
	return 0
}

// export sends the layers of ds to Victoria Metrics when an insert URL is
// configured.
func (a *app) export(ds *grid.Dataset) error {
	if a.vmInsertURL == "" {
		return nil
	}
	if a.recsPerInsert <= 0 {
		return fmt.Errorf("recsPerInsert must be positive, got %d", a.recsPerInsert)
	}
	vmCli, err := vm.NewClient(a.logger, a.vmInsertURL, a.metricPrefix)
	if err != nil {
		return fmt.Errorf("could not create new VM client: %w", err)
	}
	n, err := vmCli.Export(ds, observability.Now(), a.recsPerInsert)
	if err != nil {
		return fmt.Errorf("export to %s after %d points: %w", a.vmInsertURL, n, err)
	}
	a.logger.Info("Exported layers", "points", n, "url", a.vmInsertURL)
	return nil
}

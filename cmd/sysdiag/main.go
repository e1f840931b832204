// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Command sysdiag prints a point-in-time diagnostics report for the local host.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/antimetal/sysdiag/internal/config"
	"github.com/antimetal/sysdiag/pkg/command"
	"github.com/antimetal/sysdiag/pkg/config/environment"
	"github.com/antimetal/sysdiag/pkg/diag"
	_ "github.com/antimetal/sysdiag/pkg/diag/collectors"
	"github.com/antimetal/sysdiag/pkg/report"
)

const (
	exitOK    = 0
	exitSetup = 1
)

type options struct {
	sections map[diag.Section]*bool
	output   string
	parallel int
	verbose  bool
}

func newFlagSet(name string, opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	opts.sections = map[diag.Section]*bool{
		diag.SectionCPU:          fs.BoolP("cpu", "c", false, "Show CPU loads"),
		diag.SectionDisks:        fs.BoolP("disks", "d", false, "Show disk usage"),
		diag.SectionMemory:       fs.BoolP("memory", "m", false, "Show memory and swap usage"),
		diag.SectionNetwork:      fs.BoolP("network", "n", false, "Show network interface info"),
		diag.SectionReachability: fs.BoolP("ping", "p", false, "Ping the hosts listed in the hosts file"),
		diag.SectionServices:     fs.BoolP("services", "s", false, "Show service status"),
	}
	config.BindFlags(fs)
	fs.StringVarP(&opts.output, "output", "o", string(report.FormatText), "Output format: text, json or yaml")
	fs.IntVarP(&opts.parallel, "parallel", "j", 1, "Number of collectors run at once")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags]\n\n", name)
		fmt.Fprintf(fs.Output(), "With no section flags every section is shown.\n\n")
		fs.PrintDefaults()
	}
	return fs
}

// selected returns the sections chosen on the command line in display order.
func (o *options) selected() []diag.Section {
	var sections []diag.Section
	for _, s := range diag.ReportSections {
		if on := o.sections[s]; on != nil && *on {
			sections = append(sections, s)
		}
	}
	return sections
}

func newLogger(verbose bool) (logr.Logger, func(), error) {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		// logr V(n) maps to zap level -n.
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.Level(-2))
	}
	zapLog, err := zapConfig.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	return zapr.NewLogger(zapLog), func() { _ = zapLog.Sync() }, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(filepath.Base(os.Args[0]), &opts)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitSetup
	}

	format, err := report.ParseFormat(opts.output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}

	logger, flush, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create logger: %v\n", err)
		return exitSetup
	}
	defer flush()
	setupLog := logger.WithName("setup")

	hostPaths := environment.GetHostPaths()

	if config.CreateRequested() {
		err := config.Generate(ctx, stdout, config.GenerateOptions{
			EtcDir: hostPaths.Etc,
			Logger: logger.WithName("config.generate"),
		})
		if err != nil {
			setupLog.Error(err, "unable to write config template")
			return exitSetup
		}
		return exitOK
	}

	file, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	for _, w := range file.WarningList() {
		fmt.Fprintf(stderr, "*** %v\n", w)
	}

	collectionConfig := diag.DefaultCollectionConfig()
	collectionConfig.HostProcPath = hostPaths.Proc
	collectionConfig.HostEtcPath = hostPaths.Etc
	collectionConfig.MaxConcurrency = opts.parallel
	collectionConfig.Runner = command.NewExecRunner(
		logger.WithName("command"),
		command.WithEnv("LC_ALL=C"),
	)

	mgr, err := diag.NewManager(diag.ManagerOptions{
		Config: collectionConfig,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}

	r, err := mgr.Run(ctx, file.Config, opts.selected()...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	r.ConfigFile = file.Path
	if err := r.Err(); err != nil {
		setupLog.V(1).Info("report is incomplete", "error", err.Error())
	}

	if err := report.Render(stdout, r, format); err != nil {
		setupLog.Error(err, "unable to render report")
		return exitSetup
	}
	return exitOK
}

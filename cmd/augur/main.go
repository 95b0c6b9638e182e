package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peter-kozarec/augur/internal/logging"
	"github.com/peter-kozarec/augur/pkg/metrics"
	"github.com/peter-kozarec/augur/pkg/utility"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Version = "0.3.0"

type app struct {
	logger    *zap.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector

	logLevel    string
	development bool
	metricsFile string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{logger: zap.NewNop()}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "augur",
		Short:         "Fit, forecast and validate decomposable time-series models",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.start()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.stop()
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.development, "dev", false, "Human readable console logs")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write prometheus metrics to this textfile on exit")

	root.AddCommand(
		newFitCmd(a),
		newPredictCmd(a),
		newForecastCmd(a),
		newCrossValidateCmd(a),
		newTuneCmd(a),
		newAnomaliesCmd(a),
	)
	return root
}

func (a *app) start() error {
	logger, err := logging.New(a.logLevel, a.development)
	if err != nil {
		return fmt.Errorf("unable to build logger: %w", err)
	}
	a.logger = logger.With(zap.Stringer("session", utility.SessionID()))
	a.registry = prometheus.NewRegistry()
	a.collector = metrics.New(a.registry)

	a.logger.Debug("augur started", zap.String("version", Version))
	return nil
}

func (a *app) stop() error {
	defer func() { _ = a.logger.Sync() }()

	if a.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
		return fmt.Errorf("unable to write metrics: %w", err)
	}
	a.logger.Debug("metrics written", zap.String("path", a.metricsFile))
	return nil
}

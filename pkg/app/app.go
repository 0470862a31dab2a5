package app

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/medweb3/medtrace/pkg/metrics"
)

// App is a short lived application that runs a single command against
// resources it owns, such as an account store.
//
// The app gets initialized before the command runs, and gets stopped after
// the command has returned or the process was interrupted.
type App interface {
	// Init initializes the application in a blocking fashion. When Init
	// returns, the application is ready to run commands.
	Init(config Config, metricsProvider *newrelic.Application) error

	// Stop stops the application, allowing for it to clean up any resources.
	//
	// Stop should be idempotent.
	Stop()
}

// LoadConfig reads the config file at configPath, if it exists, on top of the
// defaults and any bound env vars or flags.
func LoadConfig(configPath string) (*BaseConfig, error) {
	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to
	// search for a default config file because one hasn't been explicitly
	// set, so a missing explicit file is detected here.
	if len(configPath) > 0 {
		if _, err := os.Stat(configPath); err == nil {
			viper.SetConfigFile(configPath)

			if err := viper.ReadInConfig(); err != nil {
				return nil, errors.Wrap(err, "failed to load config")
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if len(config.AppName) == 0 {
		return nil, errors.New("must specify an application name")
	}
	return &config, nil
}

// Run initializes app from the config at configPath, runs fn and stops app.
// The context passed to fn carries the New Relic application, if configured,
// and is cancelled on SIGINT or SIGTERM.
func Run(configPath string, app App, fn func(ctx context.Context) error) error {
	logger := logrus.StandardLogger().WithField("type", "app")

	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	// todo: Better abstraction so we're not directly tied to NR
	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return errors.Wrap(err, "error connecting to new relic")
		}

		metricsProvider = nr
	}

	configureLogger(*config, metricsProvider)

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		return errors.Wrap(err, "failed to initialize application")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if metricsProvider != nil {
		ctx = metrics.WithApplication(ctx, metricsProvider)
	}

	txnCtx, endTxn := metrics.StartTransaction(ctx, config.AppName)
	runErr := fn(txnCtx)
	endTxn()
	if ctx.Err() != nil {
		logger.Info("interrupt received, shutting down")
	}

	shutdownCh := make(chan struct{})
	go func() {
		app.Stop()
		if metricsProvider != nil {
			metricsProvider.Shutdown(config.ShutdownGracePeriod)
		}

		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		return runErr
	case <-time.After(config.ShutdownGracePeriod):
		if runErr != nil {
			return runErr
		}
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if strings.ToLower(config.LogFormat) == "text" {
		formatter = &logrus.TextFormatter{}
	}
	logrus.SetFormatter(metrics.NewLogFormatter(metricsProvider, formatter))

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	// Command output goes to stdout
	logrus.SetOutput(os.Stderr)
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medweb3/medtrace/pkg/testutil"
)

type testApp struct {
	config  Config
	initErr error

	initCalls int
	stopCalls int
}

func (a *testApp) Init(config Config, _ *newrelic.Application) error {
	a.initCalls++
	a.config = config
	return a.initErr
}

func (a *testApp) Stop() {
	a.stopCalls++
}

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func resetViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig.LogLevel, config.LogLevel)
	assert.Equal(t, defaultConfig.AppName, config.AppName)
	assert.Equal(t, defaultConfig.ShutdownGracePeriod, config.ShutdownGracePeriod)
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, `
log_level: debug
log_format: text
app_name: medtrace-test
shutdown_grace_period: 3s
app:
  store: memory
  data_dir: /tmp/medtrace
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "medtrace-test", config.AppName)
	assert.Equal(t, 3*time.Second, config.ShutdownGracePeriod)
	assert.Equal(t, "memory", config.AppConfig["store"])
	assert.Equal(t, "/tmp/medtrace", config.AppConfig["data_dir"])
}

func TestLoadConfig_Invalid(t *testing.T) {
	resetViper(t)

	_, err := LoadConfig(writeConfig(t, "log_level: [unterminated"))
	assert.Error(t, err)

	resetViper(t)
	_, err = LoadConfig(writeConfig(t, `app_name: ""`))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	resetViper(t)
	defer testutil.DisableLogging()()

	path := writeConfig(t, `
log_level: error
app:
  store: memory
`)

	app := &testApp{}
	var ran bool
	err := Run(path, app, func(ctx context.Context) error {
		ran = true
		assert.NoError(t, ctx.Err())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, app.initCalls)
	assert.Equal(t, 1, app.stopCalls)
	assert.Equal(t, "memory", app.config["store"])
	assert.Equal(t, logrus.ErrorLevel, logrus.GetLevel())
}

func TestRun_Errors(t *testing.T) {
	resetViper(t)
	defer testutil.DisableLogging()()
	path := writeConfig(t, "log_level: error\n")

	expected := errors.New("command failed")
	app := &testApp{}
	err := Run(path, app, func(ctx context.Context) error {
		return expected
	})
	assert.Equal(t, expected, err)
	assert.Equal(t, 1, app.stopCalls)

	app = &testApp{initErr: errors.New("init failed")}
	err = Run(path, app, func(ctx context.Context) error {
		require.Fail(t, "command should not run")
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, app.stopCalls)
}

func TestRun_Interrupt(t *testing.T) {
	resetViper(t)
	defer testutil.DisableLogging()()

	path := writeConfig(t, "log_level: error\n")

	app := &testApp{}
	err := Run(path, app, func(ctx context.Context) error {
		require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
		return testutil.WaitFor(5*time.Second, 10*time.Millisecond, func() bool {
			return ctx.Err() != nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, app.stopCalls)
}

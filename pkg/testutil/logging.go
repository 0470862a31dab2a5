package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	// go test passes -test.v=true, or -test.v=test2json under go test -json
	var isVerbose bool
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.v=") && arg != "-test.v=false" {
			isVerbose = true
		}
	}

	logrus.SetLevel(logrus.TraceLevel)

	if !isVerbose {
		logrus.StandardLogger().Out = io.Discard
	}
}

// DisableLogging discards log output until reset is called, restoring the
// previous output. Use it around code that reconfigures the standard logger.
func DisableLogging() (reset func()) {
	originalLogOutput := logrus.StandardLogger().Out
	logrus.StandardLogger().Out = io.Discard
	return func() {
		logrus.StandardLogger().Out = originalLogOutput
	}
}

package log_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/pipelined/flow/log"
)

func TestLoggers(t *testing.T) {
	l := log.GetLogger()
	assert.NotNil(t, l)
	assert.Contains(t, []logrus.Level{logrus.InfoLevel, logrus.DebugLevel}, l.GetLevel())

	// both loggers satisfy the interface.
	for _, logger := range []log.Logger{log.Silent(), l.WithField("test", t.Name())} {
		logger.Debug("debug")
		logger.Info("info")
		logger.Warn("warn")
	}
}

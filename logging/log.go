package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	LogLevelError   LogLevel = 0
	LogLevelWarning LogLevel = 1
	LogLevelInfo    LogLevel = 2
	LogLevelDebug   LogLevel = 3
)

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05.000000"
	formatter.FullTimestamp = true

	return &logrus.Logger{
		Out:       out,
		Formatter: formatter,
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.ErrorLevel,
	}
}

// SetLogLevel maps the numeric verbosity used on the command line onto
// logrus levels.  Anything above debug is clamped to debug.
func SetLogLevel(newLevel int) {
	switch LogLevel(newLevel) {
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelWarning:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelInfo:
		logger.SetLevel(logrus.InfoLevel)
	default:
		if newLevel < 0 {
			logger.SetLevel(logrus.ErrorLevel)
			return
		}
		logger.SetLevel(logrus.DebugLevel)
	}
}

// SetLogFile makes every log line go to stdout and logFile.
func SetLogFile(logFile io.Writer) {
	logger.SetOutput(io.MultiWriter(os.Stdout, logFile))
}

// WithField returns an entry carrying a structured field, for call sites
// that want more than a format string.
func WithField(key string, value interface{}) *logrus.Entry {
	return logger.WithField(key, value)
}

func Fatalln(args ...interface{}) {
	logger.Fatalln(args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func Debugln(args ...interface{}) {
	logger.Debugln(args...)
}

func Infoln(args ...interface{}) {
	logger.Infoln(args...)
}

func Warnln(args ...interface{}) {
	logger.Warnln(args...)
}

func Errorln(args ...interface{}) {
	logger.Errorln(args...)
}

func Debug(args ...interface{}) {
	logger.Debug(args...)
}

func Info(args ...interface{}) {
	logger.Info(args...)
}

func Warn(args ...interface{}) {
	logger.Warn(args...)
}

func Error(args ...interface{}) {
	logger.Error(fmt.Sprint(args...))
}

func SetupTestLogs() {
	logger.SetLevel(logrus.DebugLevel)
}

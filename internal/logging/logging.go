// Package logging configures the process-wide logrus logger and exposes the
// leveled helpers the rest of the monitor logs through.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotating log file inside the log directory.
const LogFileName = "monitor.log"

type Fields = logrus.Fields

var (
	setupOnce sync.Once

	outputMu   sync.Mutex
	fileWriter *lumberjack.Logger
)

// SetupBaseLogger installs the text formatter and stdout output. It is safe to
// call more than once; only the first call has an effect.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		logrus.SetOutput(os.Stdout)
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		logrus.SetLevel(logrus.InfoLevel)
	})
}

// SetDebug toggles debug level logging.
func SetDebug(enabled bool) {
	if enabled {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}

// ConfigureLogOutput switches between stdout and a rotating file in dir.
func ConfigureLogOutput(toFile bool, dir string) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if !toFile {
		closeFileWriter()
		logrus.SetOutput(os.Stdout)
		return nil
	}
	if dir == "" {
		return fmt.Errorf("log directory is required when logging to file")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	closeFileWriter()
	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFileName),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	logrus.SetOutput(fileWriter)
	return nil
}

// SetOutput sends log lines to w, closing any rotating file writer.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	closeFileWriter()
	logrus.SetOutput(w)
}

// Output returns the writer log lines currently go to.
func Output() io.Writer {
	return logrus.StandardLogger().Out
}

func closeFileWriter() {
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
}

func Debug(args ...any) { logrus.Debug(args...) }
func Info(args ...any)  { logrus.Info(args...) }
func Warn(args ...any)  { logrus.Warn(args...) }
func Error(args ...any) { logrus.Error(args...) }

func Debugf(format string, args ...any) { logrus.Debugf(format, args...) }
func Infof(format string, args ...any)  { logrus.Infof(format, args...) }
func Warnf(format string, args ...any)  { logrus.Warnf(format, args...) }
func Errorf(format string, args ...any) { logrus.Errorf(format, args...) }
func Fatalf(format string, args ...any) { logrus.Fatalf(format, args...) }

func WithError(err error) *logrus.Entry { return logrus.WithError(err) }

func WithField(key string, value any) *logrus.Entry { return logrus.WithField(key, value) }

func WithFields(fields Fields) *logrus.Entry { return logrus.WithFields(fields) }

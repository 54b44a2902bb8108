package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"

	"convoy_tracker/internal/config"
)

// Setup configures the global Logrus logger. With a log file configured,
// output goes through a rotating file; otherwise to stdout.
func Setup(cfg *config.Config) {
	logrus.SetOutput(Output(cfg.LogFile))

	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.WithFields(logrus.Fields{
		"level": level.String(),
		"file":  cfg.LogFile,
	}).Info("Logger initialized")
}

// Output returns the writer logs should go to.
func Output(filename string) io.Writer {
	if filename == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
}

package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
)

// Options controls where and how much is logged.
type Options struct {
	File   string
	Level  string
	Stdout bool
}

// Setup initializes Logrus with a rotating file and returns the writer so
// the HTTP access log can share it.
func Setup(opts Options) io.Writer {
	// 1) Lumberjack for file rotation
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 7,  // keep up to 7 old files
		MaxAge:     7,  // days
		Compress:   true,
	}

	var out io.Writer = rotator
	if opts.Stdout {
		out = io.MultiWriter(rotator, os.Stdout)
	}

	// 2) Configure Logrus to write to that file
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	return out
}

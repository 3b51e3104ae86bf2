// Package log is the process-wide logger shared by the ledger, the gateway,
// the enclave and the CLI.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger

	// errorsFile receives a copy of every Error/Errorf line when set.
	errorsFile *os.File
)

func init() {
	if err := Init("info", "console", ""); err != nil {
		panic(err)
	}
}

// Init replaces the logger. levelStr is any zap level name, encoding is
// "console" or "json", and errorsPath (optional) names a file that collects
// error lines only.
func Init(levelStr, encoding, errorsPath string) error {
	var level zap.AtomicLevel
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	if encoding == "" {
		encoding = "console"
	}

	encodeLevel := zapcore.CapitalLevelEncoder
	if encoding == "console" {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Level:            level,
		Encoding:         encoding,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			EncodeLevel:    encodeLevel,
			TimeKey:        "timestamp",
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			CallerKey:      "caller",
			EncodeCaller:   zapcore.ShortCallerEncoder,
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
		},
	}

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	var file *os.File
	if errorsPath != "" {
		file, err = os.OpenFile(errorsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open errors file: %w", err)
		}
	}

	mu.Lock()
	if logger != nil {
		//nolint:errcheck
		logger.Sync()
	}
	if errorsFile != nil {
		//nolint:errcheck
		errorsFile.Close()
	}
	logger = built.Sugar()
	errorsFile = file
	mu.Unlock()

	Debugf("log level: %s", level)
	return nil
}

// SetLogger installs an already built logger, e.g. zaptest's observer in
// tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func writeToErrorsFile(msg string) {
	mu.RLock()
	defer mu.RUnlock()
	if errorsFile == nil {
		return
	}
	//nolint:errcheck
	fmt.Fprintf(errorsFile, "%s %s\n", time.Now().Format(time.RFC3339), msg)
}

// Debugf calls log.Debugf
func Debugf(template string, args ...any) {
	current().Debugf(template, args...)
}

// Infof calls log.Infof
func Infof(template string, args ...any) {
	current().Infof(template, args...)
}

// Warnf calls log.Warnf
func Warnf(template string, args ...any) {
	current().Warnf(template, args...)
}

// Errorf calls log.Errorf and copies the line into the errors file
func Errorf(template string, args ...any) {
	current().Errorf(template, args...)
	writeToErrorsFile(fmt.Sprintf(template, args...))
}

// Infow logs a message with structured key/value context.
func Infow(msg string, keysAndValues ...any) {
	current().Infow(msg, keysAndValues...)
}

// Error calls log.Error and copies the line into the errors file
func Error(args ...any) {
	current().Error(args...)
	writeToErrorsFile(fmt.Sprint(args...))
}

// Sync flushes buffered entries.
func Sync() error {
	return current().Sync()
}

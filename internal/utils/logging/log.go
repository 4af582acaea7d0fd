// Package logging provides the zerolog backed program logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Regular expression to match ANSI escape codes
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// LoggingConfig configures SetupLogging.
type LoggingConfig struct {
	LogFilePath string
	Console     io.Writer
	Program     string
	Level       int
	NoColor     bool
}

// ProgramLogger writes human output to the console and JSON lines to the log file.
//
// The zero value discards everything, so packages may log before setup.
type ProgramLogger struct {
	mu      sync.Mutex
	ready   bool
	level   int
	console zerolog.Logger
	file    *zerolog.Logger
	fileOut io.Closer
	plain   io.Writer
}

// SetupLogging builds a ProgramLogger from the config.
func SetupLogging(cfg LoggingConfig) (*ProgramLogger, error) {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	cw := zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    cfg.NoColor,
		TimeFormat: "15:04:05",
	}

	pl := &ProgramLogger{
		ready:   true,
		level:   cfg.Level,
		console: zerolog.New(cw).With().Timestamp().Str("program", cfg.Program).Logger(),
		plain:   console,
	}

	if cfg.LogFilePath == "" {
		return pl, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o750); err != nil {
		return pl, fmt.Errorf("failed to create log directory for %q: %w", cfg.LogFilePath, err)
	}
	f, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return pl, fmt.Errorf("failed to open log file %q: %w", cfg.LogFilePath, err)
	}

	fl := zerolog.New(f).With().Timestamp().Str("program", cfg.Program).Logger()
	fl.Info().Msgf("=========== %v ===========", time.Now().Format(time.RFC1123Z))
	pl.file = &fl
	pl.fileOut = f
	return pl, nil
}

// Close closes the log file, if one is open.
func (pl *ProgramLogger) Close() error {
	if pl == nil {
		return nil
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.fileOut == nil {
		return nil
	}
	err := pl.fileOut.Close()
	pl.fileOut = nil
	pl.file = nil
	return err
}

// I logs an info message.
func (pl *ProgramLogger) I(format string, args ...any) {
	pl.write(zerolog.InfoLevel, "", format, args...)
}

// S logs a success message.
func (pl *ProgramLogger) S(format string, args ...any) {
	pl.write(zerolog.InfoLevel, "success", format, args...)
}

// W logs a warning.
func (pl *ProgramLogger) W(format string, args ...any) {
	pl.write(zerolog.WarnLevel, "", format, args...)
}

// E logs an error.
func (pl *ProgramLogger) E(format string, args ...any) {
	pl.write(zerolog.ErrorLevel, "", format, args...)
}

// D logs a debug message when l is within the configured debug level.
func (pl *ProgramLogger) D(l int, format string, args ...any) {
	if pl == nil || l > pl.Level() {
		return
	}
	pl.write(zerolog.DebugLevel, "", format, args...)
}

// P prints a plain line to the console and records it in the log file.
func (pl *ProgramLogger) P(format string, args ...any) {
	if pl == nil || !pl.ready {
		return
	}
	msg := fmt.Sprintf(format, args...)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	fmt.Fprint(pl.plain, msg)
	if pl.file != nil {
		pl.file.Info().Msg(stripAnsiCodes(msg))
	}
}

func (pl *ProgramLogger) write(lvl zerolog.Level, tag, format string, args ...any) {
	if pl == nil || !pl.ready {
		return
	}
	msg := fmt.Sprintf(format, args...)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	ev := pl.console.WithLevel(lvl)
	if tag != "" {
		ev = ev.Str("tag", tag)
	}
	ev.Msg(msg)

	if pl.file != nil {
		fev := pl.file.WithLevel(lvl)
		if tag != "" {
			fev = fev.Str("tag", tag)
		}
		fev.Msg(stripAnsiCodes(msg))
	}
}

// stripAnsiCodes removes ANSI escape codes from a string
func stripAnsiCodes(input string) string {
	return ansiEscape.ReplaceAllString(input, "")
}

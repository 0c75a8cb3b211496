// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

type Build struct {
	writer     io.Writer
	path       string
	level      string
	console    bool
	noColor    bool
	maxSizeMB  int
	maxBackups int
}

// New starts a builder that logs warnings to stderr.
func New() *Build {
	return &Build{writer: os.Stderr, level: "warn", console: true}
}

// FromPath sends output to a rotating file instead of the writer.
func (b *Build) FromPath(path string) *Build {
	b.path = strings.TrimSpace(path)
	return b
}

func (b *Build) FromWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

func (b *Build) Level(level string) *Build {
	if strings.TrimSpace(level) != "" {
		b.level = level
	}
	return b
}

// JSON disables the human-readable console writer.
func (b *Build) JSON() *Build {
	b.console = false
	return b
}

func (b *Build) NoColor(v bool) *Build {
	b.noColor = v
	return b
}

func (b *Build) Rotate(maxSizeMB, maxBackups int) *Build {
	b.maxSizeMB = maxSizeMB
	b.maxBackups = maxBackups
	return b
}

// Logger is the built logger plus the file it writes to, if any.
type Logger struct {
	zerolog.Logger
	file io.Closer
}

// Close closes the log file. Later calls do nothing.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	return f.Close()
}

func (b *Build) Make() (*Logger, error) {
	lvl, err := ParseLevel(b.level)
	if err != nil {
		return nil, err
	}
	out := &Logger{}
	w := b.writer
	if w == nil {
		w = io.Discard
	}
	switch {
	case b.path != "":
		size, backups := b.maxSizeMB, b.maxBackups
		if size <= 0 {
			size = defaultMaxSizeMB
		}
		if backups <= 0 {
			backups = defaultMaxBackups
		}
		lj := &lumberjack.Logger{Filename: b.path, MaxSize: size, MaxBackups: backups}
		out.file = lj
		w = zerolog.SyncWriter(lj)
	case b.console:
		w = zerolog.ConsoleWriter{Out: w, NoColor: b.noColor, TimeFormat: "15:04:05"}
	}
	out.Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return out, nil
}

// ParseLevel accepts zerolog level names; empty means warn.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.WarnLevel, nil
	}
	return zerolog.ParseLevel(s)
}

// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured logger of a yai plane.
//
// Records fan out to up to three handlers: stderr (text on a terminal,
// JSON otherwise), the plane's log file under the run tree (always
// JSON), and the systemd journal. Under a systemd service unit the
// stderr handler is dropped in favour of the journal, since systemd
// would capture stderr into the journal a second time.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
	"golang.org/x/term"

	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/runpath"
)

// Formats for the stderr handler.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures New.
type Options struct {
	// Level is shared by every handler. Nil logs at Info.
	Level slog.Leveler

	// Format selects the stderr encoding. Empty means FormatAuto.
	Format string

	// Stderr receives the console stream. Nil uses os.Stderr.
	Stderr io.Writer

	// FilePath, when set, appends JSON records to that file.
	FilePath string

	// Journal sends records to the systemd journal. It is also enabled
	// automatically under a systemd service unit.
	Journal bool

	// Plane is attached to every record as "plane".
	Plane string
}

// Logger is a configured logger and the resources it holds.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New builds a logger.
func New(options Options) (*Logger, error) {
	level := options.Level
	if level == nil {
		level = slog.LevelInfo
	}
	stderr := options.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	handlerOptions := &slog.HandlerOptions{Level: level}

	service := detectService()
	var handlers []slog.Handler

	var consoleHandler slog.Handler
	switch options.Format {
	case FormatJSON:
		consoleHandler = slog.NewJSONHandler(stderr, handlerOptions)
	case FormatText:
		consoleHandler = slog.NewTextHandler(stderr, handlerOptions)
	case FormatAuto, "":
		if isTerminal(stderr) {
			consoleHandler = slog.NewTextHandler(stderr, handlerOptions)
		} else {
			consoleHandler = slog.NewJSONHandler(stderr, handlerOptions)
		}
	default:
		return nil, fmt.Errorf("unknown log format %q", options.Format)
	}

	if options.Journal || service {
		journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        level,
			ReplaceGroup: toJournalKey,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
			record.AddAttrs(slog.Any("error", err))
			_ = consoleHandler.Handle(context.Background(), record)
			service = false
		} else {
			handlers = append(handlers, journalHandler)
		}
	}
	if !service {
		handlers = append(handlers, consoleHandler)
	}

	logger := &Logger{}
	if options.FilePath != "" {
		if err := runpath.Ensure(filepath.Dir(options.FilePath)); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(options.FilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, handlerOptions))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = slogmulti.Fanout(handlers...)
	}
	logger.Logger = slog.New(handler)
	if options.Plane != "" {
		logger.Logger = logger.Logger.With("plane", options.Plane)
	}
	return logger, nil
}

// ForPlane builds the logger of a plane from configuration. The level
// is returned as a LevelVar so a signal handler can change it later.
func ForPlane(cfg *config.Config, plane string) (*Logger, *slog.LevelVar, error) {
	parsed, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	level := new(slog.LevelVar)
	level.Set(parsed)

	options := Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Journal: cfg.Logging.Journal,
		Plane:   plane,
	}
	if cfg.Logging.File {
		options.FilePath = cfg.Layout().LogFile(plane)
	}
	logger, err := New(options)
	if err != nil {
		return nil, nil, err
	}
	return logger, level, nil
}

// detectService is replaced in tests.
var detectService = IsSystemdService

// IsSystemdService reports whether this process runs inside a systemd
// service unit, judged from its cgroup path.
func IsSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	return cgroupIsService(string(content))
}

// cgroupIsService inspects /proc/self/cgroup content. The unified
// hierarchy has a single "0::/path" line.
func cgroupIsService(content string) bool {
	for line := range strings.Lines(content) {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 3)
		if len(parts) == 3 && strings.HasSuffix(path.Dir(parts[2]), ".service") {
			return true
		}
		if len(parts) == 3 && strings.HasSuffix(parts[2], ".service") {
			return true
		}
	}
	return false
}

func toJournalKey(key string) string {
	key = strings.ToUpper(key)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, key)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

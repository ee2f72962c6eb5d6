// Package logs builds the application's structured logger.
package logs

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
)

// Options configures New.
type Options struct {
	// Path is the log file. Ignored when Writer is set.
	Path string
	// Writer receives text output instead of a file.
	Writer io.Writer
	Level  slog.Level
	// Journal forces the systemd journal handler on or off. Nil means on
	// only when running as a systemd service.
	Journal *bool
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
}

// New returns a logger fanning out to a text handler and, under systemd, to
// the journal. The returned closer releases the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := new(slog.LevelVar)
	level.Set(opts.Level)

	isService := false
	if cgroupPath, err := getCgroupPath(); err == nil {
		isService = strings.HasSuffix(path.Dir(cgroupPath), ".service")
	}
	useJournal := isService
	if opts.Journal != nil {
		useJournal = *opts.Journal
	}

	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	writer := opts.Writer
	if writer == nil {
		file, err := openLogFile(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		writer = file
		closer = file
	}
	textHandler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	handlers = append(handlers, textHandler)

	if useJournal {
		journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "failed to open systemd journal", 0)
			record.Add("error", err)
			_ = textHandler.Handle(context.Background(), record)
		} else {
			handlers = append(handlers, journalHandler)
		}
	}

	return slog.New(&Handler{
		Handler: slogmulti.Fanout(handlers...),
		level:   level,
	}), closer, nil
}

func openLogFile(p string) (*os.File, error) {
	if p == "" {
		return nil, fmt.Errorf("log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	str = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
	return str
}

func getCgroupPath() (string, error) {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) >= 3 {
		return parts[2], nil
	}
	return "", nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

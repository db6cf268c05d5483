// Package watcher tails agent transcript files and forwards the turns
// they record to an Observatory ingestion endpoint.
package watcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/config"
	"github.com/openclaw/observatory/internal/ingest"
)

// Sender delivers a batch of events to the Observatory.
type Sender interface {
	Send(ctx context.Context, events []ingest.EventInput) error
}

// Collector watches a transcripts directory for appended .jsonl lines,
// translates them into turn events and ships them upstream.
type Collector struct {
	dir       string
	gatewayID string
	sender    Sender
	log       *zap.Logger

	cursors  *cursorSet
	sessions *sessionMap
}

func NewCollector(cfg config.Watcher, sender Sender, log *zap.Logger) (*Collector, error) {
	if cfg.TranscriptsDir == "" {
		return nil, fmt.Errorf("transcripts directory is not configured")
	}
	return &Collector{
		dir:       cfg.TranscriptsDir,
		gatewayID: cfg.GatewayID,
		sender:    sender,
		log:       log,
		cursors:   newCursorSet(),
		sessions:  newSessionMap(),
	}, nil
}

// Run watches the transcripts directory until the context is cancelled.
// Files present at startup are cursored at their current end so history
// is never replayed.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.prime(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return fmt.Errorf("watching %s: %w", c.dir, err)
	}

	c.log.Info("transcript watcher started",
		zap.String("dir", c.dir),
		zap.String("gateway_id", c.gatewayID))

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			c.handleEvent(ctx, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watch error", zap.Error(err))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// prime loads the session mappings and cursors every existing
// transcript at its current end.
func (c *Collector) prime() error {
	n, err := c.sessions.load(filepath.Join(c.dir, sessionsFileName))
	if err != nil {
		c.log.Warn("loading session mappings", zap.Error(err))
	} else if n > 0 {
		c.log.Info("loaded session mappings", zap.Int("count", n))
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if err := c.cursors.initAtEnd(path); err != nil {
			c.log.Warn("cursoring transcript", zap.String("file", entry.Name()), zap.Error(err))
		}
	}
	return nil
}

func (c *Collector) handleEvent(ctx context.Context, ev fsnotify.Event) {
	name := filepath.Base(ev.Name)

	if name == sessionsFileName {
		if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		n, err := c.sessions.load(ev.Name)
		if err != nil {
			c.log.Warn("reloading session mappings", zap.Error(err))
			return
		}
		c.log.Info("reloaded session mappings", zap.Int("count", n))
		return
	}

	if !strings.HasSuffix(name, ".jsonl") {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		c.log.Info("new transcript", zap.String("file", name))
		if err := c.cursors.initAtEnd(ev.Name); err != nil {
			c.log.Warn("cursoring transcript", zap.String("file", name), zap.Error(err))
		}
	case ev.Op&fsnotify.Write != 0:
		if err := c.consume(ctx, ev.Name); err != nil {
			c.log.Warn("processing transcript", zap.String("file", name), zap.Error(err))
		}
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		c.cursors.forget(ev.Name)
	}
}

// consume reads every complete line appended since the last cursor
// position, translates and ships the resulting events. The cursor only
// advances past complete lines; a partial trailing line waits for the
// next write.
func (c *Collector) consume(ctx context.Context, path string) error {
	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	sessionKey := c.sessions.keyFor(sessionID)

	offset := c.cursors.get(path)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < offset {
		// Truncated or replaced; start over from the top.
		offset = 0
	}
	if info.Size() == offset {
		return nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(f)
	var events []ingest.EventInput

	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Partial line without a newline; leave it for later.
			break
		}
		if err != nil {
			return err
		}
		offset += int64(len(line))

		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			continue
		}
		if ev := translateLine([]byte(trimmed), sessionKey, c.gatewayID); ev != nil {
			events = append(events, *ev)
		}
	}

	c.cursors.set(path, offset)

	if len(events) == 0 {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := c.sender.Send(sendCtx, events); err != nil {
		// The batch is dropped; the cursor has already moved on.
		c.log.Warn("sending events", zap.Int("count", len(events)), zap.Error(err))
		return nil
	}
	c.log.Info("sent events", zap.Int("count", len(events)), zap.String("session_key", sessionKey))
	return nil
}

// Package watcher turns a directory into a drop folder: job files that
// land in the inbox are rendered and then filed under processed or
// failed.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler renders one dropped job file.
type Handler func(ctx context.Context, path string) error

type Options struct {
	Inbox     string
	Processed string
	Failed    string
	Handler   Handler
	Logger    *zap.Logger

	// Settle is how long to wait after a create event before reading the
	// file, so partially written drops are not picked up. Zero uses half
	// a second.
	Settle time.Duration
}

type Watcher struct {
	inbox     string
	processed string
	failed    string
	handler   Handler
	logger    *zap.Logger
	fsw       *fsnotify.Watcher
	settle    time.Duration

	// Renders share one engine workspace, so they run strictly one at a
	// time.
	sem chan struct{}
	wg  sync.WaitGroup
}

func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(opts.Inbox); err != nil {
		fsw.Close()
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}

	return &Watcher{
		inbox:     opts.Inbox,
		processed: opts.Processed,
		failed:    opts.Failed,
		handler:   opts.Handler,
		logger:    opts.Logger,
		fsw:       fsw,
		settle:    opts.Settle,
		sem:       make(chan struct{}, 1),
	}, nil
}

// Start watches the inbox until ctx is done. Job files already sitting
// in the inbox are picked up first.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("watching inbox", zap.String("dir", w.inbox))

	if err := w.sweepExisting(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("waiting for in-flight render to finish")
			w.wg.Wait()
			w.logger.Info("watcher stopped")
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&fsnotify.Create == fsnotify.Create && isJobFile(event.Name) {
				w.logger.Info("job file detected", zap.String("path", event.Name))
				time.Sleep(w.settle)
				if err := w.dispatch(ctx, event.Name); err != nil {
					return err
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) sweepExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		path := filepath.Join(w.inbox, e.Name())
		w.logger.Info("found job file from before startup", zap.String("path", path))
		if err := w.dispatch(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) dispatch(ctx context.Context, path string) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.process(ctx, path)
	}()
	return nil
}

func (w *Watcher) process(ctx context.Context, path string) {
	err := w.handler(ctx, path)
	if err == nil {
		w.move(path, w.processed)
		return
	}
	if ctx.Err() != nil {
		// Interrupted render: leave the file in the inbox so the next
		// run retries it.
		w.logger.Warn("render interrupted", zap.String("path", path))
		return
	}
	w.logger.Error("render failed", zap.String("path", path), zap.Error(err))
	w.move(path, w.failed)
}

func (w *Watcher) move(path, dir string) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("create archive dir", zap.String("dir", dir), zap.Error(err))
		return
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		w.logger.Warn("move job file", zap.String("path", path), zap.Error(err))
	}
}

func isJobFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

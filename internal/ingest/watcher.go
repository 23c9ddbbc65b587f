package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid update/rename bursts
	SkipHidden  bool
}

// StartWatcher emits paths of ingestible files created or changed under the
// roots. Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && AllowedExt(filepath.Ext(path)) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			_ = w.Close()
			return nil, nil, fmt.Errorf("watch %s: %w", r, err)
		}
	}
	logger.Info("watcher.started", "roots", cfg.Roots, "initial", len(initial))

	go func() {
		// all sends to evCh happen on this goroutine; the debounce timer only
		// signals through its channel
		var (
			timer   *time.Timer
			flush   <-chan time.Time
			pending = map[string]struct{}{}
		)
		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		defer close(errCh)
		defer close(evCh)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
			if err := w.Close(); err != nil {
				logger.Warn("watcher.close.failed", "err", err)
			}
		}()

		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-flush:
				flush = nil
				batch := make([]string, 0, len(pending))
				for p := range pending {
					batch = append(batch, p)
				}
				clear(pending)
				sort.Strings(batch)
				for _, p := range batch {
					if !emit(p) {
						return
					}
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if err := addIfDir(w, e.Name); err != nil {
						logger.Warn("watcher.add_dir.failed", "path", e.Name, "err", err)
					}
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if !AllowedExt(filepath.Ext(e.Name)) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !emit(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Stop()
					timer.Reset(cfg.Debounce)
				}
				flush = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "err", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// addIfDir starts watching path when it is a directory. Files are ignored.
func addIfDir(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}

// Watch ingests every path the watcher emits until ctx is done. Failures on
// single files are logged and do not stop the loop.
func (i *FSIngestor) Watch(ctx context.Context, cfg WatchConfig) error {
	events, errs, err := StartWatcher(ctx, cfg, i.Logger)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := i.IngestPath(ctx, p, false); err != nil {
				i.Logger.Warn("ingest.watch.file.failed", "path", p, "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			i.Logger.Warn("ingest.watch.error", "err", err)
		}
	}
}

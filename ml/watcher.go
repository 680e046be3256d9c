package ml

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a handle whenever its artifact file is written or replaced.
type Watcher struct {
	handle  *ModelHandle
	watcher *fsnotify.Watcher
	target  string
	logger  *zap.Logger
	// reloaded receives the outcome of every reload attempt; nil when nobody listens
	reloaded chan error
	onReload func(err error)
}

func NewWatcher(handle *ModelHandle, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(handle.Path())
	// editors and deploy tools usually replace the file, so watch the directory
	if err := fw.Add(filepath.Dir(target)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		handle:  handle,
		watcher: fw,
		target:  target,
		logger:  logger,
	}, nil
}

// Run blocks until ctx is done or the underlying watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			err := w.handle.Reload()
			if err != nil {
				w.logger.Warn("model reload failed, keeping previous model", zap.String("path", w.target), zap.Error(err))
			} else {
				info := w.handle.Info()
				w.logger.Info("model reloaded", zap.String("path", w.target), zap.String("model_type", info.ModelType))
			}
			if w.onReload != nil {
				w.onReload(err)
			}
			if w.reloaded != nil {
				select {
				case w.reloaded <- err:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("model watcher error", zap.Error(err))
		}
	}
}

// OnReload registers fn to be called after every reload attempt. Call before Run.
func (w *Watcher) OnReload(fn func(err error)) {
	w.onReload = fn
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

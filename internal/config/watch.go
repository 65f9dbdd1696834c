package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on write events, for long-lived/daemon
// uses of cip-agent where a config edit should take effect on the next
// run without a restart. Not required by the CLI's one-shot flow
// (cmd/cip-agent always calls Load once), but available to any caller
// that wires it up.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	updates chan *Config
	errs    chan error
}

// Watch starts watching path for writes, reloading and publishing a
// fresh *Config on each one. Callers must call Close when done.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{
		watcher: fsw,
		path:    path,
		updates: make(chan *Config, 1),
		errs:    make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				select {
				case w.errs <- err:
				default:
				}
				continue
			}
			select {
			case w.updates <- cfg:
			default:
				// Drop the stale pending reload in favor of the fresh one.
				select {
				case <-w.updates:
				default:
				}
				w.updates <- cfg
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Updates delivers a reloaded Config after each write to the watched
// file.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Errors delivers watch or reload errors.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

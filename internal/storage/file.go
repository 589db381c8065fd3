package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// File is a Storage backed by a JSON object on disk. Other processes writing
// the same file are picked up through an fsnotify watch on its directory.
type File struct {
	path string
	hub  hub

	mu     sync.Mutex
	values map[string]string

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// DefaultPath returns ~/.agrisense/session.json under dir
func DefaultPath(dir string) string {
	return filepath.Join(dir, "session.json")
}

// OpenFile loads path (a missing file is an empty store) and starts watching it
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	f := &File{path: path}
	values, err := f.read()
	if err != nil {
		return nil, err
	}
	f.values = values

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	f.watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	go f.watchLoop(ctx)

	return f, nil
}

func (f *File) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	return values, nil
}

// write replaces the file atomically. Caller holds f.mu.
func (f *File) write() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		logger.Debug("chmod session file failed", logger.Err(err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.write()
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.write()
}

func (f *File) Subscribe() (<-chan Change, func()) {
	return f.hub.subscribe()
}

// Close stops the watcher and releases subscribers
func (f *File) Close() error {
	f.cancel()
	err := f.watcher.Close()
	f.wg.Wait()
	f.hub.closeAll()
	return err
}

func (f *File) watchLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.reload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Session file watcher error", logger.Err(err))
		}
	}
}

// reload re-reads the file and publishes every key whose value differs from memory.
// The read happens under f.mu, the same lock own writes hold, so disk and
// memory agree for every own write and only other writers produce changes.
func (f *File) reload() {
	f.mu.Lock()
	fresh, err := f.read()
	if err != nil {
		f.mu.Unlock()
		// Partial writes from another process show up as parse errors; the
		// rename that completes them triggers another event.
		logger.Debug("Session file reload skipped", logger.Err(err))
		return
	}

	var changes []Change
	for k, v := range fresh {
		if old, ok := f.values[k]; !ok || old != v {
			changes = append(changes, Change{Key: k, OldValue: old, NewValue: v})
		}
	}
	for k, old := range f.values {
		if _, ok := fresh[k]; !ok {
			changes = append(changes, Change{Key: k, OldValue: old})
		}
	}
	f.values = fresh
	f.mu.Unlock()

	for _, c := range changes {
		logger.Debug("Session storage changed externally", logger.F("key", c.Key))
		f.hub.publish(c)
	}
}

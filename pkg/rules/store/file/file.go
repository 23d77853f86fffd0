// Package file provides a YAML-file-backed rule store with hot reload.
//
// The whole rule set lives in one file; edits made by other processes are
// picked up through a filesystem watcher. Intended for small deployments
// where rules are managed by hand or by configuration tooling.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/aclgate/internal/logger"
	"github.com/marmos91/aclgate/pkg/acl"
)

// rulesFile is the on-disk document layout.
type rulesFile struct {
	Rules []acl.Rule `yaml:"rules"`
}

// FileRuleStore implements rules.Store over a single YAML file.
//
// Reads are served from an in-memory index rebuilt on every reload. Writes
// update the index and rewrite the file atomically (temp file + rename).
// A watcher on the containing directory reloads the index when the file
// changes on disk; a reload that fails to parse keeps the previous index.
type FileRuleStore struct {
	path string

	mu    sync.RWMutex
	index *index

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New opens the rule file at path, loading it if it exists, and starts the
// change watcher. A missing file is treated as an empty rule set; it is
// created on the first write.
func New(path string) (*FileRuleStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid rule file path %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("failed to create rule file directory: %w", err)
	}

	idx, err := loadIndex(abs)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory, not the file: editors and this store itself
	// replace the file by rename, which would orphan a file watch.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch rule file directory: %w", err)
	}

	s := &FileRuleStore{
		path:    abs,
		index:   idx,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go s.watchLoop()
	return s, nil
}

// Close stops the watcher. The rule file is left as last written.
func (s *FileRuleStore) Close() error {
	select {
	case <-s.stopCh:
		// Already closed.
	default:
		close(s.stopCh)
	}
	err := s.watcher.Close()
	<-s.doneCh
	return err
}

func (s *FileRuleStore) watchLoop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("rule file watcher error", "path", s.path, "error", err)
		}
	}
}

// reload swaps in a freshly parsed index. Parse failures keep the current
// rules in effect.
func (s *FileRuleStore) reload() {
	idx, err := loadIndex(s.path)
	if err != nil {
		logger.Error("rule file reload failed, keeping previous rules", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()

	logger.Info("rule file reloaded", "path", s.path, "rules", idx.len())
}

// loadIndex parses the rule file into a fresh index. A missing file yields
// an empty index.
func loadIndex(path string) (*index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newIndex(), nil
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	idx := newIndex()
	for i, r := range doc.Rules {
		r.Path = acl.CleanPath(r.Path)
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule %d in %s: %w", i, path, err)
		}
		idx.set(r)
	}
	return idx, nil
}

// save writes the current index back to disk atomically.
// Callers hold s.mu.
func (s *FileRuleStore) save() error {
	doc := rulesFile{Rules: s.index.all()}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode rule file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create rule file directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rules-*")
	if err != nil {
		return fmt.Errorf("failed to stage rule file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace rule file: %w", err)
	}
	return nil
}

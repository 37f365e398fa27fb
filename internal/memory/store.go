// Package memory persists plans that executed successfully, keyed by the
// request that produced them, so repeated requests skip generation.
package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"go.uber.org/zap"
)

// NormalizeKey lower-cases and trims a request.
func NormalizeKey(request string) string {
	return strings.ToLower(strings.TrimSpace(request))
}

// Entry is one learned pattern.
type Entry struct {
	Request string    `json:"request"`
	Plan    plan.Plan `json:"plan"`
}

// Store is a JSON file mapping normalized requests to plans. The whole map is
// held in memory and the file is replaced atomically on every write.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *zap.Logger

	mu       sync.RWMutex
	patterns map[string]plan.Plan
}

// Open loads the store at path, creating its directory if needed. A missing
// file is an empty store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.GetLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	s := &Store{
		path:     path,
		lock:     flock.New(path + ".lock"),
		logger:   logger.Named("memory"),
		patterns: make(map[string]plan.Plan),
	}
	patterns, err := s.readFile()
	if err != nil {
		return nil, err
	}
	s.patterns = patterns
	s.logger.Debug("plan memory loaded", observability.Event(observability.EventTypeMemory),
		zap.String("path", path), zap.Int("patterns", len(patterns)))
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Lookup returns the plan remembered for request.
func (s *Store) Lookup(request string) (plan.Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[NormalizeKey(request)]
	return p, ok
}

// Remember stores p under request, replacing any previous plan. Plans with no
// actions are ignored.
func (s *Store) Remember(request string, p plan.Plan) error {
	key := NormalizeKey(request)
	if key == "" || p.IsEmpty() {
		return nil
	}
	stored := plan.New(p.Actions...)
	return s.update(func(m map[string]plan.Plan) {
		m[key] = stored
	})
}

// Forget drops request from the store. It reports whether anything was removed.
func (s *Store) Forget(request string) (bool, error) {
	key := NormalizeKey(request)
	removed := false
	err := s.update(func(m map[string]plan.Plan) {
		if _, ok := m[key]; ok {
			delete(m, key)
			removed = true
		}
	})
	return removed, err
}

// Entries returns every learned pattern sorted by request.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.patterns))
	for k, p := range s.patterns {
		out = append(out, Entry{Request: k, Plan: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Request < out[j].Request })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// update runs load-modify-store under the process mutex and the file lock so
// concurrent writers, including other processes, never lose updates.
func (s *Store) update(mutate func(map[string]plan.Plan)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock plan memory: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to unlock plan memory", zap.Error(err))
		}
	}()

	current, err := s.readFile()
	if err != nil {
		return err
	}
	mutate(current)
	if err := s.writeFile(current); err != nil {
		return err
	}
	s.patterns = current
	s.logger.Debug("plan memory written", observability.Event(observability.EventTypeMemory),
		zap.Int("patterns", len(current)))
	return nil
}

func (s *Store) readFile() (map[string]plan.Plan, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]plan.Plan), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plan memory: %w", err)
	}
	patterns := make(map[string]plan.Plan)
	if len(strings.TrimSpace(string(data))) == 0 {
		return patterns, nil
	}
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode plan memory %s: %w", s.path, err)
	}
	return patterns, nil
}

// writeFile replaces the store file atomically. Callers hold the file lock.
func (s *Store) writeFile(patterns map[string]plan.Plan) error {
	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan memory: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to replace plan memory: %w", err)
	}
	return nil
}

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/jobinfo"
)

// ErrUnknownKey is returned when an update names a key outside the schema.
var ErrUnknownKey = errors.New("unknown settings key")

// Store keeps settings in memory and mirrors them to a JSON file. An empty
// path keeps everything in memory. Writes are last-writer-wins.
type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	values map[string]any
}

// Open loads the store from path. A missing or empty file yields an empty store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{path: strings.TrimSpace(path), logger: logger, values: make(map[string]any)}
	if s.path == "" {
		return s, nil
	}

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("settings file not found, starting empty", zap.String("path", s.path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open settings file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return s, nil
	}

	if err := json.NewDecoder(file).Decode(&s.values); err != nil {
		return nil, fmt.Errorf("decode settings file %q: %w", s.path, err)
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}

	return s, nil
}

// Path returns the backing file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Load returns the typed settings with defaults applied for missing keys.
func (s *Store) Load() (Settings, error) {
	s.mu.RLock()
	snapshot := make(map[string]any, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	return decode(snapshot)
}

// Set merges values into the store and persists it. A nil value deletes the key.
func (s *Store) Set(values map[string]any) error {
	for key := range values {
		if !IsKnownKey(key) {
			return fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]any, len(s.values)+len(values))
	for k, v := range s.values {
		next[k] = v
	}
	for k, v := range values {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}

	if _, err := decode(next); err != nil {
		return err
	}
	s.values = next

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.logger.Debug("settings updated", zap.Strings("keys", keys))

	return s.persist()
}

// SaveJobInfo stores info as the latest extracted posting.
func (s *Store) SaveJobInfo(info jobinfo.Info) error {
	return s.Set(map[string]any{KeyCurrentJobInfo: jobInfoValue(info)})
}

// persist writes the store atomically. Callers hold s.mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	file, err := os.CreateTemp(dir, ".settings_*.json")
	if err != nil {
		return err
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.values); err != nil {
		file.Close()
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

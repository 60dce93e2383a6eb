package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const stateFileName = "state.json"

// Change is the before/after value of a single key. A nil side means the key was absent.
type Change struct {
	OldValue json.RawMessage
	NewValue json.RawMessage
}

// Changes maps every key touched by a mutation to its change.
type Changes map[string]Change

// Has reports whether any of keys changed.
func (changes Changes) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := changes[key]; ok {
			return true
		}
	}
	return false
}

// Local is a small persistent key-value store shared by every process of the user.
// The whole document is rewritten on each mutation and renamed into place, so
// readers never observe a partially written document.
type Local struct {
	fs     afero.Fs
	path   string
	logger logrus.FieldLogger

	mu     sync.Mutex
	values map[string]json.RawMessage

	subsMu    sync.Mutex
	subs      map[int]func(Changes)
	nextSubID int
}

// OpenLocal loads the document at path, creating its directory when needed.
// A missing or unreadable document starts the store empty.
func OpenLocal(fs afero.Fs, path string, logger logrus.FieldLogger) (*Local, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	local := &Local{
		fs:     fs,
		path:   path,
		logger: logger.WithField("component", "storage"),
		subs:   make(map[int]func(Changes)),
	}

	values, err := local.readDocument()
	if err != nil {
		local.logger.WithError(err).Warn("Ignoring unreadable state file")
		values = map[string]json.RawMessage{}
	}
	local.values = values
	return local, nil
}

// DefaultStatePath returns the state file location inside the user config dir.
func DefaultStatePath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, stateFileName), nil
}

// Path returns the backing file path.
func (local *Local) Path() string {
	return local.path
}

// Get decodes the value stored under key into dst. It returns false when the key is absent.
func (local *Local) Get(key string, dst any) (bool, error) {
	local.mu.Lock()
	raw, ok := local.values[key]
	local.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// GetAll returns the raw values of the present keys from a single snapshot,
// so related keys always come from the same document.
func (local *Local) GetAll(keys ...string) map[string]json.RawMessage {
	local.mu.Lock()
	defer local.mu.Unlock()

	snapshot := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if raw, ok := local.values[key]; ok {
			snapshot[key] = append(json.RawMessage(nil), raw...)
		}
	}
	return snapshot
}

// Set stores every entry of values in a single document write.
func (local *Local) Set(values map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = raw
	}

	return local.mutate(func(next map[string]json.RawMessage) {
		for key, raw := range encoded {
			next[key] = raw
		}
	})
}

// Remove deletes every key in a single document write.
func (local *Local) Remove(keys ...string) error {
	return local.mutate(func(next map[string]json.RawMessage) {
		for _, key := range keys {
			delete(next, key)
		}
	})
}

// Subscribe registers fn for every observed mutation, local or from another
// process. The returned func unregisters it.
func (local *Local) Subscribe(fn func(Changes)) func() {
	local.subsMu.Lock()
	id := local.nextSubID
	local.nextSubID++
	local.subs[id] = fn
	local.subsMu.Unlock()

	return func() {
		local.subsMu.Lock()
		delete(local.subs, id)
		local.subsMu.Unlock()
	}
}

// Reload re-reads the document from disk and notifies subscribers of any difference.
func (local *Local) Reload() error {
	values, err := local.readDocument()
	if err != nil {
		return err
	}

	local.mu.Lock()
	changes := diff(local.values, values)
	local.values = values
	local.mu.Unlock()

	local.notify(changes)
	return nil
}

func (local *Local) mutate(apply func(map[string]json.RawMessage)) error {
	local.mu.Lock()
	// Apply on top of the latest document so another process's keys survive.
	base, err := local.readDocument()
	if err != nil {
		local.logger.WithError(err).Debug("Mutating in-memory state instead of unreadable file")
		base = local.values
	}
	next := make(map[string]json.RawMessage, len(base))
	for key, raw := range base {
		next[key] = raw
	}
	apply(next)

	changes := diff(local.values, next)
	if len(diff(base, next)) > 0 {
		if err := local.writeDocument(next); err != nil {
			local.mu.Unlock()
			return err
		}
	}
	local.values = next
	local.mu.Unlock()

	local.notify(changes)
	return nil
}

func (local *Local) notify(changes Changes) {
	if len(changes) == 0 {
		return
	}

	local.subsMu.Lock()
	ids := make([]int, 0, len(local.subs))
	for id := range local.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Changes), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, local.subs[id])
	}
	local.subsMu.Unlock()

	for _, fn := range subs {
		fn(changes)
	}
}

func (local *Local) readDocument() (map[string]json.RawMessage, error) {
	rawData, err := afero.ReadFile(local.fs, local.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(bytes.TrimSpace(rawData)) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(rawData, &values); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return values, nil
}

func (local *Local) writeDocument(values map[string]json.RawMessage) error {
	serialized, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Each writer gets its own temp file so concurrent processes never
	// rename each other's partial output into place.
	tmp, err := afero.TempFile(local.fs, filepath.Dir(local.path), "state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(serialized); err != nil {
		_ = tmp.Close()
		_ = local.fs.Remove(tmpPath)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = local.fs.Remove(tmpPath)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := local.fs.Rename(tmpPath, local.path); err != nil {
		_ = local.fs.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func diff(old, next map[string]json.RawMessage) Changes {
	changes := Changes{}
	for key, oldValue := range old {
		newValue, ok := next[key]
		if !ok {
			changes[key] = Change{OldValue: oldValue}
			continue
		}
		if !bytes.Equal(oldValue, newValue) {
			changes[key] = Change{OldValue: oldValue, NewValue: newValue}
		}
	}
	for key, newValue := range next {
		if _, ok := old[key]; !ok {
			changes[key] = Change{NewValue: newValue}
		}
	}
	return changes
}

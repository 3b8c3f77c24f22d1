package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"go.uber.org/zap"
	"xflow.dev/assistant/internal/metrics"
)

// RedactionMarker replaces every detected email address or phone number.
const RedactionMarker = "[REDACTED]"

// piiPattern is a best-effort filter: ASCII emails and 10-digit
// North-American style phone numbers only.
var piiPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b|\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)

// Redact replaces email and phone-number substrings with RedactionMarker.
func Redact(s string) string {
	return piiPattern.ReplaceAllString(s, RedactionMarker)
}

// RedactingStore is a volatile key-value map. Values are scrubbed of PII on
// write and live only as long as the owning page session.
type RedactingStore struct {
	mu     sync.RWMutex
	items  map[string]any
	logger *zap.SugaredLogger
}

func NewRedactingStore(logger *zap.SugaredLogger) *RedactingStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedactingStore{
		items:  make(map[string]any),
		logger: logger,
	}
}

// Set stores a redacted copy of value. A value that cannot be round-tripped
// through JSON is logged and dropped.
func (s *RedactingStore) Set(key string, value any) {
	safe, err := sanitize(value)
	if err != nil {
		s.logger.Warnf("Session store write for key %q dropped: %v", key, err)
		metrics.StoreDroppedWrites.Inc()
		return
	}

	s.mu.Lock()
	s.items[key] = safe
	s.mu.Unlock()
}

// Get returns the stored value; ok is false when the key was never set or
// has been removed.
func (s *RedactingStore) Get(key string) (value any, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok = s.items[key]
	return value, ok
}

func (s *RedactingStore) Remove(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

func (s *RedactingStore) Clear() {
	s.mu.Lock()
	clear(s.items)
	s.mu.Unlock()
}

func (s *RedactingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get is the typed form of RedactingStore.Get. A stored value of another
// type reads as absent.
func Get[T any](s *RedactingStore, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func sanitize(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return Redact(v), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serialize %T: %w", value, err)
	}

	// Redact decoded strings, not the encoded bytes: escapes such as \n or
	// \u003c would otherwise hide matches or be split by the marker.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode %T: %w", value, err)
	}
	clean, err := json.Marshal(redactTree(tree))
	if err != nil {
		return nil, fmt.Errorf("serialize %T: %w", value, err)
	}

	out := reflect.New(reflect.TypeOf(value))
	if err := json.Unmarshal(clean, out.Interface()); err != nil {
		return nil, fmt.Errorf("restore %T: %w", value, err)
	}
	return out.Elem().Interface(), nil
}

func redactTree(v any) any {
	switch t := v.(type) {
	case string:
		return Redact(t)
	case []any:
		for i, e := range t {
			t[i] = redactTree(e)
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[Redact(k)] = redactTree(e)
		}
		return out
	}
	return v
}

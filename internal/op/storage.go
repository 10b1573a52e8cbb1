package op

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paperdag/paperdag/internal/kvstore"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// KeyValueFunc projects an item onto the key and value to persist. A nil
// value is stored as JSON null unless the writer skips nil values.
type KeyValueFunc func(item any) (key string, value any, err error)

// KVWriter merges the projected items into a key-value namespace and
// passes its input through unchanged.
type KVWriter struct {
	pipeline.BaseOperator

	store    *kvstore.Store
	keyValue KeyValueFunc
	skipNil  bool
}

var _ pipeline.Operator = (*KVWriter)(nil)

// KVWriterOption is a functional option for configuring a KVWriter.
type KVWriterOption func(*KVWriter)

// WithSkipNilValues drops items whose projected value is nil instead of
// recording the key with a null value.
func WithSkipNilValues() KVWriterOption {
	return func(w *KVWriter) {
		w.skipNil = true
	}
}

// NewKVWriter creates a writer over the given store.
func NewKVWriter(store *kvstore.Store, keyValue KeyValueFunc, opts ...KVWriterOption) *KVWriter {
	w := &KVWriter{store: store, keyValue: keyValue}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process persists the items and returns them unchanged.
func (w *KVWriter) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		key, value, err := w.keyValue(item)
		if err != nil {
			return nil, fmt.Errorf("op: failed to project item for %s: %w", w.store.Namespace(), err)
		}
		if value == nil && w.skipNil {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("op: failed to marshal value for key %q: %w", key, err)
		}
		pairs[key] = raw
	}

	if len(pairs) > 0 {
		if err := w.store.Merge(pairs); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "Stored items", "namespace", w.store.Namespace(), "count", len(pairs))
	return items, nil
}

// ValueReaderFunc turns a stored raw value back into an item.
type ValueReaderFunc func(key string, value json.RawMessage) (any, error)

// KVReader emits every value of a key-value namespace in sorted-key
// order. It ignores its input.
type KVReader struct {
	pipeline.BaseOperator

	store       *kvstore.Store
	valueReader ValueReaderFunc
	skipNull    bool
}

var _ pipeline.Operator = (*KVReader)(nil)

// KVReaderOption is a functional option for configuring a KVReader.
type KVReaderOption func(*KVReader)

// WithSkipNullValues drops entries stored as JSON null instead of handing
// them to the value reader.
func WithSkipNullValues() KVReaderOption {
	return func(r *KVReader) {
		r.skipNull = true
	}
}

// NewKVReader creates a reader over the given store. A nil valueReader
// passes the raw JSON value through.
func NewKVReader(store *kvstore.Store, valueReader ValueReaderFunc, opts ...KVReaderOption) *KVReader {
	if valueReader == nil {
		valueReader = func(_ string, value json.RawMessage) (any, error) {
			return value, nil
		}
	}
	r := &KVReader{store: store, valueReader: valueReader}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process reads the namespace and returns []any of transformed values.
func (r *KVReader) Process(ctx context.Context, _ any) (any, error) {
	entries, err := r.store.Read()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	items := make([]any, 0, len(keys))
	for _, key := range keys {
		value := entries[key].Value
		if r.skipNull && isJSONNull(value) {
			continue
		}
		item, err := r.valueReader(key, value)
		if err != nil {
			return nil, fmt.Errorf("op: failed to read value for key %q: %w", key, err)
		}
		items = append(items, item)
	}

	logger.Info(ctx, "Read items", "namespace", r.store.Namespace(), "count", len(items))
	return items, nil
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

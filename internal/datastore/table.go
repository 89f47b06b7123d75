package datastore

import (
	"context"
	"encoding/json"
)

// Table binds a Store to one named table and adds a read-through cache for
// repeated reads within a poll cycle. Not safe for concurrent use; the poll
// cycle is strictly sequential.
type Table struct {
	store *Store
	name  string
	buf   map[string]json.RawMessage
}

// Table returns a handle for the named table. The table itself is not
// created until Ensure is called.
func (s *Store) Table(name string) *Table {
	return &Table{store: s, name: name, buf: map[string]json.RawMessage{}}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Ensure creates the underlying table if needed.
func (t *Table) Ensure(ctx context.Context) error {
	return t.store.EnsureTable(ctx, t.name)
}

// Get reads the raw document for key, serving repeats from the cache.
func (t *Table) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if raw, ok := t.buf[key]; ok {
		return raw, true, nil
	}
	raw, ok, err := t.store.Get(ctx, t.name, key)
	if err != nil || !ok {
		return nil, false, err
	}
	t.buf[key] = raw
	return raw, true, nil
}

// GetJSON reads and unmarshals the document for key into v.
func (t *Table) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := t.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(raw, v)
}

// Put upserts the raw document for key. The cache entry is dropped so the
// next Get reads the committed row.
func (t *Table) Put(ctx context.Context, key string, data []byte) error {
	if err := t.store.Put(ctx, t.name, key, data); err != nil {
		return err
	}
	delete(t.buf, key)
	return nil
}

// PutJSON marshals v and upserts it for key.
func (t *Table) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.Put(ctx, key, data)
}

// Delete removes key from the table and the cache.
func (t *Table) Delete(ctx context.Context, key string) error {
	if err := t.store.Delete(ctx, t.name, key); err != nil {
		return err
	}
	delete(t.buf, key)
	return nil
}

// Keys lists every key in the table.
func (t *Table) Keys(ctx context.Context) ([]string, error) {
	return t.store.Keys(ctx, t.name)
}

// Count returns the number of rows in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	return t.store.Count(ctx, t.name)
}

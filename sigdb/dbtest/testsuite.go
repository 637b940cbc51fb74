// Package dbtest holds the conformance suite every sigdb.KeyValueStore
// implementation is run against.
package dbtest

import (
	"bytes"
	"crypto/rand"
	"sort"
	"testing"

	"github.com/tos-network/tossig/sigdb"
)

// TestDatabaseSuite runs a suite of tests against a KeyValueStore database
// implementation.
func TestDatabaseSuite(t *testing.T, New func() sigdb.KeyValueStore) {
	t.Run("Iterator", func(t *testing.T) {
		tests := []struct {
			content map[string]string
			prefix  string
			start   string
			order   []string
		}{
			// Empty databases should be iterable
			{map[string]string{}, "", "", nil},
			{map[string]string{}, "non-existent-prefix", "", nil},

			// Single-item databases should be iterable
			{map[string]string{"key": "val"}, "", "", []string{"key"}},
			{map[string]string{"key": "val"}, "k", "", []string{"key"}},
			{map[string]string{"key": "val"}, "l", "", nil},

			// Multi-item databases should be fully iterable
			{
				map[string]string{"k1": "v1", "k5": "v5", "k2": "v2", "k4": "v4", "k3": "v3"},
				"", "",
				[]string{"k1", "k2", "k3", "k4", "k5"},
			},
			{
				map[string]string{"k1": "v1", "k5": "v5", "k2": "v2", "k4": "v4", "k3": "v3"},
				"k", "",
				[]string{"k1", "k2", "k3", "k4", "k5"},
			},
			{
				map[string]string{"k1": "v1", "k5": "v5", "k2": "v2", "k4": "v4", "k3": "v3"},
				"l", "",
				nil,
			},
			// Multi-item databases should be prefix-iterable
			{
				map[string]string{
					"ka1": "va1", "ka5": "va5", "ka2": "va2", "ka4": "va4", "ka3": "va3",
					"kb1": "vb1", "kb5": "vb5", "kb2": "vb2", "kb4": "vb4", "kb3": "vb3",
				},
				"ka", "",
				[]string{"ka1", "ka2", "ka3", "ka4", "ka5"},
			},
			{
				map[string]string{
					"ka1": "va1", "ka5": "va5", "ka2": "va2", "ka4": "va4", "ka3": "va3",
					"kb1": "vb1", "kb5": "vb5", "kb2": "vb2", "kb4": "vb4", "kb3": "vb3",
				},
				"kc", "",
				nil,
			},
			// Multi-item databases should be prefix-iterable with start position
			{
				map[string]string{
					"ka1": "va1", "ka5": "va5", "ka2": "va2", "ka4": "va4", "ka3": "va3",
					"kb1": "vb1", "kb5": "vb5", "kb2": "vb2", "kb4": "vb4", "kb3": "vb3",
				},
				"ka", "3",
				[]string{"ka3", "ka4", "ka5"},
			},
			{
				map[string]string{
					"ka1": "va1", "ka5": "va5", "ka2": "va2", "ka4": "va4", "ka3": "va3",
					"kb1": "vb1", "kb5": "vb5", "kb2": "vb2", "kb4": "vb4", "kb3": "vb3",
				},
				"ka", "8",
				nil,
			},
		}
		for i, tt := range tests {
			db := New()
			for key, val := range tt.content {
				if err := db.Put([]byte(key), []byte(val)); err != nil {
					t.Fatalf("test %d: failed to insert item %s:%s into database: %v", i, key, val, err)
				}
			}
			it, idx := db.NewIterator([]byte(tt.prefix), []byte(tt.start)), 0
			for it.Next() {
				if len(tt.order) <= idx {
					t.Errorf("test %d: prefix=%q more items than expected: checking idx=%d (key %q), expecting len=%d", i, tt.prefix, idx, it.Key(), len(tt.order))
					break
				}
				if !bytes.Equal(it.Key(), []byte(tt.order[idx])) {
					t.Errorf("test %d: item %d: key mismatch: have %s, want %s", i, idx, string(it.Key()), tt.order[idx])
				}
				if !bytes.Equal(it.Value(), []byte(tt.content[tt.order[idx]])) {
					t.Errorf("test %d: item %d: value mismatch: have %s, want %s", i, idx, string(it.Value()), tt.content[tt.order[idx]])
				}
				idx++
			}
			if err := it.Error(); err != nil {
				t.Errorf("test %d: iteration failed: %v", i, err)
			}
			if idx != len(tt.order) {
				t.Errorf("test %d: iteration terminated prematurely: have %d, want %d", i, idx, len(tt.order))
			}
			it.Release()
			db.Close()
		}
	})

	t.Run("KeyLength", func(t *testing.T) {
		db := New()
		defer db.Close()

		keys := []string{"", "k", "long-key-with-some-room-to-spare"}
		for i, key := range keys {
			if err := db.Put([]byte(key), []byte{byte(i)}); err != nil {
				t.Fatalf("failed to insert key %q: %v", key, err)
			}
		}
		for i, key := range keys {
			got, err := db.Get([]byte(key))
			if err != nil {
				t.Fatalf("failed to get key %q: %v", key, err)
			}
			if !bytes.Equal(got, []byte{byte(i)}) {
				t.Fatalf("value mismatch for key %q: have %x, want %x", key, got, []byte{byte(i)})
			}
		}
	})

	t.Run("ModifyValue", func(t *testing.T) {
		db := New()
		defer db.Close()

		key, value := []byte("key"), []byte("value")
		if err := db.Put(key, value); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		// Mutating the value handed to Put must not affect the stored entry.
		value[0] = 'x'

		got, err := db.Get(key)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if !bytes.Equal(got, []byte("value")) {
			t.Fatalf("stored value mutated: have %q, want %q", got, "value")
		}
		// Mutating the returned slice must not affect the stored entry either.
		got[0] = 'y'

		again, err := db.Get(key)
		if err != nil {
			t.Fatalf("failed to re-get: %v", err)
		}
		if !bytes.Equal(again, []byte("value")) {
			t.Fatalf("stored value mutated via result: have %q, want %q", again, "value")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := New()
		defer db.Close()

		if err := db.Put([]byte("gone"), []byte("soon")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if err := db.Delete([]byte("gone")); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if has, err := db.Has([]byte("gone")); err != nil {
			t.Fatalf("failed to check: %v", err)
		} else if has {
			t.Fatal("deleted key still present")
		}
		// Deleting a missing key is not an error.
		if err := db.Delete([]byte("never-there")); err != nil {
			t.Fatalf("deleting missing key: %v", err)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		for _, k := range []string{"1", "2", "3", "4"} {
			if err := b.Put([]byte(k), nil); err != nil {
				t.Fatalf("failed to put key %q to batch: %v", k, err)
			}
		}
		// Nothing lands before Write.
		for _, k := range []string{"1", "2", "3", "4"} {
			if has, err := db.Has([]byte(k)); err != nil {
				t.Fatalf("failed to check key %q: %v", k, err)
			} else if has {
				t.Fatalf("key %q visible before batch write", k)
			}
		}
		if err := b.Write(); err != nil {
			t.Fatalf("failed to write batch: %v", err)
		}
		if got, want := iterateKeys(db.NewIterator(nil, nil)), []string{"1", "2", "3", "4"}; !sliceEqual(got, want) {
			t.Fatalf("keys mismatch after batch write: have %v, want %v", got, want)
		}

		b.Reset()
		// Mix writes and deletes in the same batch.
		if err := b.Put([]byte("5"), nil); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if err := b.Delete([]byte("1")); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := b.Put([]byte("6"), nil); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if err := b.Delete([]byte("3")); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := b.Write(); err != nil {
			t.Fatalf("failed to write batch: %v", err)
		}
		if got, want := iterateKeys(db.NewIterator(nil, nil)), []string{"2", "4", "5", "6"}; !sliceEqual(got, want) {
			t.Fatalf("keys mismatch after mixed batch: have %v, want %v", got, want)
		}
	})

	t.Run("BatchReplay", func(t *testing.T) {
		db := New()
		defer db.Close()

		want := db.NewBatch()
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := want.Put([]byte(k), nil); err != nil {
				t.Fatalf("failed to put key %q to batch: %v", k, err)
			}
		}
		db2 := New()
		defer db2.Close()

		got := db2.NewBatch()
		if err := want.Replay(got); err != nil {
			t.Fatalf("failed to replay batch: %v", err)
		}
		if err := got.Write(); err != nil {
			t.Fatalf("failed to write replayed batch: %v", err)
		}
		if keys, wantKeys := iterateKeys(db2.NewIterator(nil, nil)), []string{"a", "b", "c", "d"}; !sliceEqual(keys, wantKeys) {
			t.Fatalf("keys mismatch after replay: have %v, want %v", keys, wantKeys)
		}
	})

	t.Run("ValueSize", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		if b.ValueSize() != 0 {
			t.Fatalf("fresh batch reports size %d", b.ValueSize())
		}
		if err := b.Put([]byte("key"), []byte("value")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if b.ValueSize() == 0 {
			t.Fatal("batch size not accounted after put")
		}
		b.Reset()
		if b.ValueSize() != 0 {
			t.Fatalf("reset batch reports size %d", b.ValueSize())
		}
	})

	t.Run("RandomContent", func(t *testing.T) {
		db := New()
		defer db.Close()

		// Flood the store through a batch and verify iteration order matches a
		// sorted reference.
		var (
			keys  []string
			batch = db.NewBatch()
		)
		for i := 0; i < 64; i++ {
			key := make([]byte, 16)
			if _, err := rand.Read(key); err != nil {
				t.Fatalf("failed to generate key: %v", err)
			}
			keys = append(keys, string(key))
			if err := batch.Put(key, key); err != nil {
				t.Fatalf("failed to put: %v", err)
			}
			if batch.ValueSize() > sigdb.IdealBatchSize {
				if err := batch.Write(); err != nil {
					t.Fatalf("failed to write batch: %v", err)
				}
				batch.Reset()
			}
		}
		if err := batch.Write(); err != nil {
			t.Fatalf("failed to write final batch: %v", err)
		}
		sort.Strings(keys)
		if got := iterateKeys(db.NewIterator(nil, nil)); !sliceEqual(got, keys) {
			t.Fatalf("random content iteration mismatch: have %d keys, want %d in order", len(got), len(keys))
		}
	})
}

func iterateKeys(it sigdb.Iterator) []string {
	keys := []string{}
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	sort.Strings(keys)
	it.Release()
	return keys
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

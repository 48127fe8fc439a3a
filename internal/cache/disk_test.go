package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scene struct {
	ID    string  `json:"id"`
	Cloud float64 `json:"cloud"`
}

func TestDiskPutGet(t *testing.T) {
	d := NewDisk[[]scene](t.TempDir(), 0)
	key := d.Key("sentinel-2-l2a", 2022, 30.0)

	_, ok := d.Get(key)
	assert.False(t, ok)

	want := []scene{{ID: "a", Cloud: 3}, {ID: "b", Cloud: 12.5}}
	require.NoError(t, d.Put(key, want))
	assert.FileExists(t, d.file(key))

	got, ok := d.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestDiskKey(t *testing.T) {
	d := NewDisk[int](t.TempDir(), 0)
	assert.Equal(t, d.Key("a", 1), d.Key("a", 1))
	assert.NotEqual(t, d.Key("a", 1), d.Key("a", 2))
	assert.NotEqual(t, d.Key(1), d.Key("1"), "the type is part of the key")
	assert.Len(t, d.Key(), 64)
}

func TestDiskDropsDamagedEntry(t *testing.T) {
	d := NewDisk[string](t.TempDir(), 0)
	key := d.Key("k")
	require.NoError(t, d.Put(key, "value"))
	require.NoError(t, os.WriteFile(d.file(key), []byte(`{"sum":"x","value":"other"}`), 0644))

	_, ok := d.Get(key)
	assert.False(t, ok)
	assert.NoFileExists(t, d.file(key))
}

func TestDiskExpires(t *testing.T) {
	now := time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC)
	d := NewDisk[string](t.TempDir(), time.Hour)
	d.now = func() time.Time { return now }
	key := d.Key("k")
	require.NoError(t, d.Put(key, "value"))

	now = now.Add(59 * time.Minute)
	_, ok := d.Get(key)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = d.Get(key)
	assert.False(t, ok)
	assert.NoFileExists(t, d.file(key))
}

func TestDiskDelete(t *testing.T) {
	d := NewDisk[int](t.TempDir(), 0)
	key := d.Key("k")
	require.NoError(t, d.Put(key, 3))
	require.NoError(t, d.Delete(key))

	_, ok := d.Get(key)
	assert.False(t, ok)
	assert.NoError(t, d.Delete(key))
}

package geocache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aea-online/shopmap/internal/model"
)

func TestFullAddressAndKey(t *testing.T) {
	full := FullAddress("1 Airport Rd", "Wichita", "KS", "67209")
	assert.Equal(t, "1 Airport Rd, Wichita, KS 67209", full)
	assert.Equal(t, "1 airport rd, wichita, ks 67209", Key(full))

	// Missing zip leaves no trailing space.
	assert.Equal(t, "1 Airport Rd, Wichita, KS", FullAddress("1 Airport Rd", "Wichita", "KS", ""))
	// Missing address keeps the leading separator, matching earlier cache files.
	assert.Equal(t, ", Wichita, KS", FullAddress("", "Wichita", "KS", ""))
}

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c, err := Load(path)
	require.Error(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
	assert.Contains(t, err.Error(), "geocache: parse")
}

func TestLoad_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "1 airport rd, wichita, ks 67209": {"lat": 37.65, "lng": -97.43}
}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	got, ok := c.Get("1 airport rd, wichita, ks 67209")
	require.True(t, ok)
	assert.Equal(t, model.Coordinates{Lat: 37.65, Lng: -97.43}, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestSave_SortedIndentedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cache.json")

	c := New()
	c.Put("b st, town, tx", model.Coordinates{Lat: 2, Lng: -2})
	c.Put("a st, town, tx", model.Coordinates{Lat: 1, Lng: -1})
	require.NoError(t, c.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `{
  "a st, town, tx": {
    "lat": 1,
    "lng": -1
  },
  "b st, town, tx": {
    "lat": 2,
    "lng": -2
  }
}
`
	assert.Equal(t, want, string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	got, _ := loaded.Get("b st, town, tx")
	assert.Equal(t, model.Coordinates{Lat: 2, Lng: -2}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSave_KeysWrittenVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New()
	c.Put("a&p hangar <bldg 2>, wichita, ks", model.Coordinates{Lat: 1, Lng: -1})
	require.NoError(t, c.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a&p hangar <bldg 2>, wichita, ks"`)
}

func TestPut_Overwrites(t *testing.T) {
	c := New()
	c.Put("k", model.Coordinates{Lat: 1, Lng: 1})
	c.Put("k", model.Coordinates{Lat: 3, Lng: 3})
	got, _ := c.Get("k")
	assert.Equal(t, model.Coordinates{Lat: 3, Lng: 3}, got)
	assert.Equal(t, 1, c.Len())
}

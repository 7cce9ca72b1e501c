package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aea-online/shopmap/internal/export"
	"github.com/aea-online/shopmap/internal/model"
)

func intPtr(i int) *int { return &i }

func sampleDoc() model.Document {
	return model.Document{
		Shops: []model.ShopRecord{
			{ID: 1, Name: "Zephyr Avionics", Type: model.ShopTypeRepairStation, State: "KS", Hiring: true, OpeningsCount: intPtr(1), Lat: 37.65, Lng: -97.43},
			{ID: 2, Name: "Gulf MRO", Type: model.ShopTypeMRO, State: "TX", Hiring: false, Lat: 29.76, Lng: -95.37},
			{ID: 3, Name: "Alpha Aero", Type: model.ShopTypeRepairStation, State: "KS", Hiring: true, OpeningsCount: intPtr(4), Lat: 39.05, Lng: -95.68},
			{ID: 4, Name: "Beta Dealer", Type: model.ShopTypeDealer, State: "", Hiring: true, Lat: 39.8283, Lng: -98.5795},
		},
		Metadata: model.Metadata{TotalShops: 4, UniqueStates: 3, HiringCount: 3, TotalOpenings: 5, LastUpdated: "2026-03-01T08:30:00.000Z"},
	}
}

func ids(shops []model.ShopRecord) []int {
	out := make([]int, 0, len(shops))
	for _, s := range shops {
		out = append(out, s.ID)
	}
	return out
}

func TestQuery_Filters(t *testing.T) {
	c := New(sampleDoc())

	tests := []struct {
		name string
		f    Filter
		want []int
	}{
		{"no filter", Filter{}, []int{1, 2, 3, 4}},
		{"all states", Filter{State: "all"}, []int{1, 2, 3, 4}},
		{"state", Filter{State: "KS"}, []int{1, 3}},
		{"state is exact", Filter{State: "ks"}, []int{}},
		{"hiring only", Filter{HiringOnly: true}, []int{1, 3, 4}},
		{"state and hiring", Filter{State: "TX", HiringOnly: true}, []int{}},
		{"type", Filter{Type: model.ShopTypeDealer}, []int{4}},
		{"sorted", Filter{Sorted: true}, []int{3, 1, 4, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Query(tt.f)
			assert.Equal(t, tt.want, ids(res.Shops))
			assert.Equal(t, len(tt.want), res.Count)
		})
	}
}

func TestQuery_CountsAndBounds(t *testing.T) {
	c := New(sampleDoc())

	res := c.Query(Filter{State: "KS"})
	assert.Equal(t, 2, res.HiringCount)
	require.NotNil(t, res.Bounds)
	assert.Equal(t, Bounds{South: 37.65, West: -97.43, North: 39.05, East: -95.68}, *res.Bounds)

	empty := c.Query(Filter{State: "ZZ"})
	assert.Nil(t, empty.Bounds)
	assert.NotNil(t, empty.Shops)
}

func TestQuery_DoesNotReorderDocument(t *testing.T) {
	c := New(sampleDoc())
	_ = c.Query(Filter{Sorted: true})
	assert.Equal(t, []int{1, 2, 3, 4}, ids(c.Document().Shops))
}

func TestStates(t *testing.T) {
	c := New(sampleDoc())
	assert.Equal(t, []string{"", "KS", "TX"}, c.States())

	// Callers cannot mutate the catalog's copy.
	s := c.States()
	s[0] = "mutated"
	assert.Equal(t, "", c.States()[0])
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shops.json")
	require.NoError(t, export.WriteJSON(path, sampleDoc()))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Metadata().TotalShops)
	assert.Len(t, c.Query(Filter{}).Shops, 4)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: parse")
}

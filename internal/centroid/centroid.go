// Package centroid maps a US state or Canadian province to an approximate
// centre point used when an address cannot be geocoded.
package centroid

import (
	_ "embed"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/aea-online/shopmap/internal/model"
)

//go:embed centroids.yaml
var centroidsYAML []byte

type region struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lng  float64 `yaml:"lng"`
}

type file struct {
	Default region            `yaml:"default"`
	Regions map[string]region `yaml:"regions"`
}

// Table is a loaded centroid table indexed by code and folded name.
type Table struct {
	def   model.Coordinates
	index map[string]model.Coordinates
	codes []string
}

var defaultTable = mustParse(centroidsYAML)

func mustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds a Table from YAML with a default entry and a regions map
// keyed by two-letter code.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "centroid: parse table")
	}
	if len(f.Regions) == 0 {
		return nil, eris.New("centroid: table has no regions")
	}

	t := &Table{
		def:   model.Coordinates{Lat: f.Default.Lat, Lng: f.Default.Lng},
		index: make(map[string]model.Coordinates, 2*len(f.Regions)),
	}
	for code, r := range f.Regions {
		c := model.Coordinates{Lat: r.Lat, Lng: r.Lng}
		t.index[fold(code)] = c
		if r.Name != "" {
			t.index[fold(r.Name)] = c
		}
		t.codes = append(t.codes, strings.ToUpper(code))
	}
	return t, nil
}

// Lookup returns the centroid for a two-letter code or full region name.
// Matching ignores case, surrounding space and accents.
func (t *Table) Lookup(state string) (model.Coordinates, bool) {
	c, ok := t.index[fold(state)]
	return c, ok
}

// For returns the centroid for state, or the default when state is empty or
// unknown.
func (t *Table) For(state string) model.Coordinates {
	if c, ok := t.Lookup(state); ok {
		return c
	}
	return t.def
}

// Default returns the fallback centre.
func (t *Table) Default() model.Coordinates { return t.def }

// Len returns the number of regions.
func (t *Table) Len() int { return len(t.codes) }

// Lookup resolves state against the embedded table.
func Lookup(state string) (model.Coordinates, bool) { return defaultTable.Lookup(state) }

// For resolves state against the embedded table, falling back to the default.
func For(state string) model.Coordinates { return defaultTable.For(state) }

// Default is the embedded table's fallback, the centre of the contiguous US.
func Default() model.Coordinates { return defaultTable.Default() }

func fold(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)
	return s
}

// Package catalog answers filtered queries over a generated shop document.
package catalog

import (
	"cmp"
	"encoding/json"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/aea-online/shopmap/internal/model"
)

// AllStates is the state filter value that matches every shop.
const AllStates = "all"

// Filter selects shops the way the map's controls do.
type Filter struct {
	State      string         // "" or "all" matches every state
	HiringOnly bool           // keep only shops that are hiring
	Type       model.ShopType // "" matches every type
	Sorted     bool           // hiring first, then openings, then name
}

// Bounds is the lat/lng box around a set of shops.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Result is the answer to a Query.
type Result struct {
	Shops       []model.ShopRecord `json:"shops"`
	Count       int                `json:"count"`
	HiringCount int                `json:"hiringCount"`
	Bounds      *Bounds            `json:"bounds"`
}

// Catalog is a read-only, in-memory view of a document. It is safe for
// concurrent use.
type Catalog struct {
	doc    model.Document
	states []string
}

// Load reads the document at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	return New(doc), nil
}

// New builds a Catalog over doc.
func New(doc model.Document) *Catalog {
	if doc.Shops == nil {
		doc.Shops = []model.ShopRecord{}
	}
	seen := make(map[string]struct{})
	states := []string{}
	for _, s := range doc.Shops {
		if _, ok := seen[s.State]; ok {
			continue
		}
		seen[s.State] = struct{}{}
		states = append(states, s.State)
	}
	slices.Sort(states)
	return &Catalog{doc: doc, states: states}
}

// Document returns the underlying document.
func (c *Catalog) Document() model.Document { return c.doc }

// Metadata returns the document metadata.
func (c *Catalog) Metadata() model.Metadata { return c.doc.Metadata }

// States returns the distinct shop states, sorted.
func (c *Catalog) States() []string { return slices.Clone(c.states) }

// Query returns the shops matching f.
func (c *Catalog) Query(f Filter) Result {
	res := Result{Shops: []model.ShopRecord{}}
	for _, s := range c.doc.Shops {
		if !f.Match(s) {
			continue
		}
		res.Shops = append(res.Shops, s)
		if s.Hiring {
			res.HiringCount++
		}
	}
	res.Count = len(res.Shops)
	res.Bounds = BoundsOf(res.Shops)
	if f.Sorted {
		SortForList(res.Shops)
	}
	return res
}

// Match reports whether s passes the filter.
func (f Filter) Match(s model.ShopRecord) bool {
	if f.State != "" && !strings.EqualFold(f.State, AllStates) && s.State != f.State {
		return false
	}
	if f.HiringOnly && !s.Hiring {
		return false
	}
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	return true
}

// BoundsOf returns the box around shops, or nil when there are none.
func BoundsOf(shops []model.ShopRecord) *Bounds {
	if len(shops) == 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, s := range shops {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{s.Lng, s.Lat}))
	}
	return &Bounds{
		South: b.Min(1),
		West:  b.Min(0),
		North: b.Max(1),
		East:  b.Max(0),
	}
}

// SortForList orders shops hiring first, then by openings (missing counts as
// zero) descending, then by name.
func SortForList(shops []model.ShopRecord) {
	slices.SortStableFunc(shops, func(a, b model.ShopRecord) int {
		if a.Hiring != b.Hiring {
			if a.Hiring {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(openings(b), openings(a)); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

func openings(s model.ShopRecord) int {
	if s.OpeningsCount == nil {
		return 0
	}
	return *s.OpeningsCount
}

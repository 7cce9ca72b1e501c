package export

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/aea-online/shopmap/internal/model"
)

// FeatureCollection renders shops as GeoJSON Point features ([lng, lat]).
// Properties carry every shop field except id and coordinates; the feature
// id is the shop id. The collection bbox covers all points.
func FeatureCollection(shops []model.ShopRecord) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(shops))}
	if len(shops) == 0 {
		return fc, nil
	}

	bounds := geom.NewBounds(geom.XY)
	for i := range shops {
		s := &shops[i]
		pt := geom.NewPointFlat(geom.XY, []float64{s.Lng, s.Lat})
		bounds.Extend(pt)

		props, err := properties(s)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(s.ID),
			Geometry:   pt,
			Properties: props,
		})
	}
	fc.BBox = bounds
	return fc, nil
}

// WriteGeoJSON writes shops as a FeatureCollection to path atomically.
func WriteGeoJSON(path string, shops []model.ShopRecord) error {
	fc, err := FeatureCollection(shops)
	if err != nil {
		return err
	}
	return WriteJSON(path, fc)
}

func properties(s *model.ShopRecord) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrapf(err, "export: marshal shop %d", s.ID)
	}
	props := make(map[string]any)
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, eris.Wrapf(err, "export: shop %d properties", s.ID)
	}
	delete(props, "id")
	delete(props, "lat")
	delete(props, "lng")
	return props, nil
}

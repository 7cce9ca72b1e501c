// Package model defines the roster, shop and output document types shared by
// the pipeline, the exporters and the catalog.
package model

import "time"

// ShopType is the canonical business category of a member shop.
type ShopType string

const (
	ShopTypeMRO           ShopType = "MRO"
	ShopTypeRepairStation ShopType = "Repair Station"
	ShopTypeOEM           ShopType = "OEM"
	ShopTypeDealer        ShopType = "Dealer"
)

// ShopTypes lists every canonical shop type in display order.
var ShopTypes = []ShopType{ShopTypeMRO, ShopTypeRepairStation, ShopTypeOEM, ShopTypeDealer}

// Valid reports whether t is one of the canonical shop types.
func (t ShopType) Valid() bool {
	for _, st := range ShopTypes {
		if t == st {
			return true
		}
	}
	return false
}

// RawRecord is one roster row. Every field is free text and may be empty.
type RawRecord struct {
	Name            string `csv:"name"`
	Type            string `csv:"type"`
	Address         string `csv:"address"`
	City            string `csv:"city"`
	State           string `csv:"state"`
	Zip             string `csv:"zip"`
	Phone           string `csv:"phone"`
	Email           string `csv:"email"`
	Website         string `csv:"website"`
	Contact         string `csv:"contact"`
	Airport         string `csv:"airport"`
	MemberSince     string `csv:"memberSince"`
	Hiring          string `csv:"hiring"`
	OpeningsCount   string `csv:"openingsCount"`
	PositionTypes   string `csv:"positionTypes"`
	ExperienceLevel string `csv:"experienceLevel"`
	Benefits        string `csv:"benefits"`
	CompanySize     string `csv:"companySize"`
	Specializations string `csv:"specializations"`
	Shifts          string `csv:"shifts"`
	SalaryRange     string `csv:"salaryRange"`
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ShopRecord is the canonical, typed shop consumed by the map. Nullable
// fields are pointers so they encode as JSON null; list fields are never nil.
// ID is positional (row order) and is not stable across roster edits.
type ShopRecord struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Type            ShopType `json:"type"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Zip             string   `json:"zip"`
	Phone           *string  `json:"phone"`
	Email           *string  `json:"email"`
	Website         *string  `json:"website"`
	Contact         *string  `json:"contact"`
	Airport         *string  `json:"airport"`
	MemberSince     *int     `json:"memberSince"`
	Hiring          bool     `json:"hiring"`
	OpeningsCount   *int     `json:"openingsCount"`
	PositionTypes   []string `json:"positionTypes"`
	ExperienceLevel *string  `json:"experienceLevel"`
	Benefits        []string `json:"benefits"`
	CompanySize     *string  `json:"companySize"`
	Specializations []string `json:"specializations"`
	Shifts          []string `json:"shifts"`
	SalaryRange     *string  `json:"salaryRange"`
	Lat             float64  `json:"lat"`
	Lng             float64  `json:"lng"`
}

// Metadata summarizes a generated document. It is recomputed on every run.
type Metadata struct {
	TotalShops    int    `json:"totalShops"`
	UniqueStates  int    `json:"uniqueStates"`
	HiringCount   int    `json:"hiringCount"`
	TotalOpenings int    `json:"totalOpenings"`
	LastUpdated   string `json:"lastUpdated"`
}

// Document is the JSON contract with the map front-end.
type Document struct {
	Shops    []ShopRecord `json:"shops"`
	Metadata Metadata     `json:"metadata"`
}

// TimestampLayout renders lastUpdated as an ISO-8601 UTC instant with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Summarize computes document metadata over shops.
func Summarize(shops []ShopRecord, now time.Time) Metadata {
	states := make(map[string]struct{}, len(shops))
	var hiring, openings int
	for _, s := range shops {
		states[s.State] = struct{}{}
		if s.Hiring {
			hiring++
		}
		if s.OpeningsCount != nil {
			openings += *s.OpeningsCount
		}
	}
	return Metadata{
		TotalShops:    len(shops),
		UniqueStates:  len(states),
		HiringCount:   hiring,
		TotalOpenings: openings,
		LastUpdated:   now.UTC().Format(TimestampLayout),
	}
}

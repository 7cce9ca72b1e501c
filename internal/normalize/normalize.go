// Package normalize maps free-text roster cells to canonical shop fields.
// Every function is total: malformed or empty input yields a documented
// default, never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aea-online/shopmap/internal/model"
)

var (
	nonDigits     = regexp.MustCompile(`\D`)
	listSeparator = regexp.MustCompile(`[,;]`)
)

// ShopType classifies text by case-insensitive substring. Unrecognized or
// empty input is a repair station.
func ShopType(text string) model.ShopType {
	v := strings.ToLower(strings.TrimSpace(text))
	switch {
	case v == "":
		return model.ShopTypeRepairStation
	case strings.Contains(v, "mro"):
		return model.ShopTypeMRO
	case strings.Contains(v, "oem"):
		return model.ShopTypeOEM
	case strings.Contains(v, "dealer"), strings.Contains(v, "distributor"):
		return model.ShopTypeDealer
	default:
		return model.ShopTypeRepairStation
	}
}

// Phone formats North American numbers as "(AAA) BBB-CCCC". Ten digits, or
// eleven with a leading 1, are formatted; anything else non-empty passes
// through trimmed.
func Phone(text string) *string {
	digits := nonDigits.ReplaceAllString(text, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		formatted := "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
		return &formatted
	}
	return Text(text)
}

// Website prefixes https:// when the URL carries no http(s) scheme.
func Website(text string) *string {
	v := strings.TrimSpace(text)
	if v == "" {
		return nil
	}
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		v = "https://" + v
	}
	return &v
}

// Hiring reports whether text is one of true, yes, 1 or y.
func Hiring(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "yes", "1", "y":
		return true
	default:
		return false
	}
}

// Number parses the leading base-10 integer of text, so "12 open" is 12.
// Input without leading digits returns nil.
func Number(text string) *int {
	v := strings.TrimSpace(text)
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	start := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == start {
		return nil
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return nil
	}
	return &n
}

// List splits on commas and semicolons, trimming items and dropping empty
// ones. The result is never nil.
func List(text string) []string {
	items := []string{}
	if strings.TrimSpace(text) == "" {
		return items
	}
	for _, item := range listSeparator.Split(text, -1) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Experience level buckets.
const (
	ExperienceEntry   = "Entry-level"
	ExperienceJunior  = "1-2 years"
	ExperienceMid     = "3-5 years"
	ExperienceSenior  = "5+ years"
	CompanySizeSmall  = "Small (1-10)"
	CompanySizeMedium = "Medium (11-50)"
	CompanySizeLarge  = "Large (50+)"
)

// bucket is one ordered substring rule. The first rule with any matching
// token wins.
type bucket struct {
	label  string
	tokens []string
}

// Buckets overlap: "5" is claimed by the mid bucket before "5+" is tested, so
// the senior bucket only matches on its words. Output depends on this order.
var experienceBuckets = []bucket{
	{ExperienceEntry, []string{"entry", "0", "none"}},
	{ExperienceJunior, []string{"1", "2"}},
	{ExperienceMid, []string{"3", "4", "5"}},
	{ExperienceSenior, []string{"5+", "senior", "experienced"}},
}

var companySizeBuckets = []bucket{
	{CompanySizeSmall, []string{"small", "1-10", "< 10"}},
	{CompanySizeMedium, []string{"medium", "11-50", "10-50"}},
	{CompanySizeLarge, []string{"large", "50+", "51+"}},
}

func classify(text string, buckets []bucket) *string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	v := strings.ToLower(trimmed)
	for _, b := range buckets {
		for _, token := range b.tokens {
			if strings.Contains(v, token) {
				label := b.label
				return &label
			}
		}
	}
	return &trimmed
}

// ExperienceLevel maps text to an experience bucket, or returns it trimmed
// when nothing matches.
func ExperienceLevel(text string) *string {
	return classify(text, experienceBuckets)
}

// CompanySize maps text to a company size bucket, or returns it trimmed when
// nothing matches.
func CompanySize(text string) *string {
	return classify(text, companySizeBuckets)
}

// Text trims text and returns nil when nothing is left.
func Text(text string) *string {
	v := strings.TrimSpace(text)
	if v == "" {
		return nil
	}
	return &v
}

// Upper is Text upper-cased.
func Upper(text string) *string {
	v := Text(text)
	if v == nil {
		return nil
	}
	upper := strings.ToUpper(*v)
	return &upper
}

// OrDefault trims text and substitutes def when it is empty.
func OrDefault(text, def string) string {
	if v := strings.TrimSpace(text); v != "" {
		return v
	}
	return def
}

// Record assembles every non-coordinate field of a shop. ID, Lat and Lng are
// left for the caller.
func Record(raw model.RawRecord) model.ShopRecord {
	return model.ShopRecord{
		Name:            OrDefault(raw.Name, "Unknown"),
		Type:            ShopType(raw.Type),
		Address:         strings.TrimSpace(raw.Address),
		City:            strings.TrimSpace(raw.City),
		State:           strings.TrimSpace(raw.State),
		Zip:             strings.TrimSpace(raw.Zip),
		Phone:           Phone(raw.Phone),
		Email:           Text(raw.Email),
		Website:         Website(raw.Website),
		Contact:         Text(raw.Contact),
		Airport:         Upper(raw.Airport),
		MemberSince:     Number(raw.MemberSince),
		Hiring:          Hiring(raw.Hiring),
		OpeningsCount:   Number(raw.OpeningsCount),
		PositionTypes:   List(raw.PositionTypes),
		ExperienceLevel: ExperienceLevel(raw.ExperienceLevel),
		Benefits:        List(raw.Benefits),
		CompanySize:     CompanySize(raw.CompanySize),
		Specializations: List(raw.Specializations),
		Shifts:          List(raw.Shifts),
		SalaryRange:     Text(raw.SalaryRange),
	}
}

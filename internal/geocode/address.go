package geocode

import "strings"

// Address is the addressdetails object of a Nominatim reverse response.
type Address struct {
	State         string `json:"state"`
	Province      string `json:"province"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Municipality  string `json:"municipality"`
	CityDistrict  string `json:"city_district"`
	District      string `json:"district"`
	Borough       string `json:"borough"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	Quarter       string `json:"quarter"`
	Hamlet        string `json:"hamlet"`
	Road          string `json:"road"`
	Residential   string `json:"residential"`
	Footway       string `json:"footway"`
	Path          string `json:"path"`
	HouseNumber   string `json:"house_number"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
}

// FormatJapanese joins the address largest unit first with no separators:
// prefecture, city, ward, locality, road, house number. Consecutive
// duplicate parts are dropped.
func FormatJapanese(a Address) string {
	parts := []string{
		firstNonEmpty(a.State, a.Province),
		firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		firstNonEmpty(a.CityDistrict, a.District, a.Borough, a.Suburb),
		firstNonEmpty(a.Neighbourhood, a.Quarter, a.Hamlet),
		firstNonEmpty(a.Road, a.Residential, a.Footway, a.Path),
		a.HouseNumber,
	}

	var b strings.Builder
	prev := ""
	for _, p := range parts {
		if p == "" || p == prev {
			continue
		}
		b.WriteString(p)
		prev = p
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

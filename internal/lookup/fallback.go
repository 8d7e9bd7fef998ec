package lookup

// fallbackCarriers is the static per-country carrier table used when the
// carrier directory is unreachable. Keys are canonical country codes as
// produced by cache.Normalize.
var fallbackCarriers = map[string][]Carrier{
	"us": {
		{Name: "AT&T", Country: "us", Bands: []string{"B2", "B4", "B12", "B66", "n77"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "T-Mobile", Country: "us", Bands: []string{"B2", "B4", "B12", "B71", "n41", "n71"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "Verizon", Country: "us", Bands: []string{"B2", "B4", "B13", "B66", "n77"}, Technologies: []string{"LTE", "5G NR"}},
	},
	"ca": {
		{Name: "Rogers", Country: "ca", Bands: []string{"B4", "B7", "B12", "n78"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "Bell", Country: "ca", Bands: []string{"B2", "B4", "B7", "n78"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "Telus", Country: "ca", Bands: []string{"B2", "B4", "B7", "n78"}, Technologies: []string{"LTE", "5G NR"}},
	},
	"gb": {
		{Name: "EE", Country: "gb", Bands: []string{"B3", "B7", "B20", "n78"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "Vodafone", Country: "gb", Bands: []string{"B1", "B7", "B20", "n78"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "O2", Country: "gb", Bands: []string{"B1", "B8", "B20", "n78"}, Technologies: []string{"LTE", "5G NR"}},
	},
	"de": {
		{Name: "Deutsche Telekom", Country: "de", Bands: []string{"B1", "B3", "B7", "n78"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "Vodafone DE", Country: "de", Bands: []string{"B1", "B3", "B20", "n78"}, Technologies: []string{"LTE", "5G NR"}},
		{Name: "O2 Germany", Country: "de", Bands: []string{"B1", "B3", "B8", "n78"}, Technologies: []string{"LTE", "5G NR"}},
	},
}

// defaultFallback is returned for locations with no entry in the table.
var defaultFallback = []Carrier{
	{Name: "Local GSM carrier", Bands: []string{"B1", "B3"}, Technologies: []string{"LTE"}},
}

// FallbackCarriers returns the static carrier list for a canonical location.
func FallbackCarriers(location string) []Carrier {
	if carriers, ok := fallbackCarriers[location]; ok {
		return carriers
	}
	return defaultFallback
}

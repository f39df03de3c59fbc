package vin

// DefaultYear is reported when position 10 holds a code outside yearByCode.
const DefaultYear = "2020"

// Fallbacks for a WMI prefix missing from manufacturers.
const (
	FallbackMake  = "Commercial Truck"
	FallbackModel = "Unknown"
)

// yearByCode covers the current 30-year cycle from 2010 through 2024.
var yearByCode = map[byte]string{
	'A': "2010", 'B': "2011", 'C': "2012", 'D': "2013", 'E': "2014",
	'F': "2015", 'G': "2016", 'H': "2017", 'J': "2018", 'K': "2019",
	'L': "2020", 'M': "2021", 'N': "2022", 'P': "2023", 'R': "2024",
}

type makeModel struct {
	Make  string
	Model string
}

// manufacturers maps heavy-duty truck WMI prefixes to a representative model.
var manufacturers = map[string]makeModel{
	"1HG": {Make: "Peterbilt", Model: "579"},
	"1XP": {Make: "Peterbilt", Model: "389"},
	"3HT": {Make: "Kenworth", Model: "T680"},
	"1FK": {Make: "Freightliner", Model: "Cascadia"},
	"1FU": {Make: "Freightliner", Model: "Columbia"},
	"1NX": {Make: "Volvo", Model: "VNL"},
	"4V4": {Make: "Volvo", Model: "VT"},
	"2FK": {Make: "Mack", Model: "Anthem"},
}

// YearFromCode returns the model year for a position-10 code, or DefaultYear.
func YearFromCode(code byte) string {
	if y, ok := yearByCode[byte(upperASCII(rune(code)))]; ok {
		return y
	}
	return DefaultYear
}

// MakeModelFromWMI returns the make and model guess for a 3-character prefix,
// or the generic commercial-truck fallback.
func MakeModelFromWMI(wmi string) (mk, model string) {
	if mm, ok := manufacturers[upperString(wmi)]; ok {
		return mm.Make, mm.Model
	}
	return FallbackMake, FallbackModel
}

func upperString(s string) string {
	b := []byte(s)
	for i := range b {
		b[i] = byte(upperASCII(rune(b[i])))
	}
	return string(b)
}

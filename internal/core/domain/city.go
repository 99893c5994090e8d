package domain

import "strings"

// City pairs a short location code with the canonical location name
// understood by the CWA open data platform.
type City struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// cities lists the 22 first-level administrative divisions of Taiwan in
// display order. It is never mutated after init.
var cities = []City{
	{Code: "taipei", Name: "臺北市"},
	{Code: "newtaipei", Name: "新北市"},
	{Code: "keelung", Name: "基隆市"},
	{Code: "taoyuan", Name: "桃園市"},
	{Code: "hsinchu", Name: "新竹市"},
	{Code: "hsinchucounty", Name: "新竹縣"},
	{Code: "miaoli", Name: "苗栗縣"},
	{Code: "taichung", Name: "臺中市"},
	{Code: "changhua", Name: "彰化縣"},
	{Code: "nantou", Name: "南投縣"},
	{Code: "yunlin", Name: "雲林縣"},
	{Code: "chiayi", Name: "嘉義市"},
	{Code: "chiayicounty", Name: "嘉義縣"},
	{Code: "tainan", Name: "臺南市"},
	{Code: "kaohsiung", Name: "高雄市"},
	{Code: "pingtung", Name: "屏東縣"},
	{Code: "yilan", Name: "宜蘭縣"},
	{Code: "hualien", Name: "花蓮縣"},
	{Code: "taitung", Name: "臺東縣"},
	{Code: "penghu", Name: "澎湖縣"},
	{Code: "kinmen", Name: "金門縣"},
	{Code: "lienchiang", Name: "連江縣"},
}

var cityNames = func() map[string]string {
	m := make(map[string]string, len(cities))

	for _, c := range cities {
		m[c.Code] = c.Name
	}

	return m
}()

// NormalizeCityCode lowercases a caller supplied code.
func NormalizeCityCode(code string) string {
	return strings.ToLower(code)
}

// ResolveCity returns the canonical location name for a city code.
// The lookup is case-insensitive.
func ResolveCity(code string) (string, bool) {
	name, ok := cityNames[NormalizeCityCode(code)]

	return name, ok
}

// Cities returns every registered city in display order.
// The returned slice is a copy and may be modified by the caller.
func Cities() []City {
	out := make([]City, len(cities))
	copy(out, cities)

	return out
}

// CityCodes returns every registered city code in display order.
func CityCodes() []string {
	codes := make([]string, len(cities))

	for i, c := range cities {
		codes[i] = c.Code
	}

	return codes
}

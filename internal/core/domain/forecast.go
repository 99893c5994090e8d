// Package domain contains the core business entities of the weather proxy.
// These types are independent of the HTTP transport and of the CWA wire format.
package domain

// Forecast is the compact 36-hour forecast for a single city.
type Forecast struct {
	// City is the location name reported by the provider
	City string `json:"city"`

	// UpdateTime is the dataset description reported by the provider, verbatim
	UpdateTime string `json:"updateTime"`

	// Forecasts holds one entry per time slice in chronological order
	Forecasts []ForecastInterval `json:"forecasts"`
}

// ForecastInterval is the forecast for one time slice.
// Every field defaults to the empty string when the provider omits the
// corresponding weather element.
type ForecastInterval struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	// Weather is the textual weather phenomenon, e.g. "晴時多雲"
	Weather string `json:"weather"`

	// Rain is the probability of precipitation with a "%" suffix
	Rain string `json:"rain"`

	// MinTemp and MaxTemp carry a "°C" suffix
	MinTemp string `json:"minTemp"`
	MaxTemp string `json:"maxTemp"`

	// Comfort is the textual comfort index
	Comfort string `json:"comfort"`
}

// ElementCategory names one weather element of the F-C0032-001 dataset.
type ElementCategory string

const (
	// ElementWeather is the weather phenomenon (Wx)
	ElementWeather ElementCategory = "Wx"

	// ElementRain is the probability of precipitation (PoP)
	ElementRain ElementCategory = "PoP"

	// ElementMinTemp is the minimum temperature (MinT)
	ElementMinTemp ElementCategory = "MinT"

	// ElementMaxTemp is the maximum temperature (MaxT)
	ElementMaxTemp ElementCategory = "MaxT"

	// ElementComfort is the comfort index (CI)
	ElementComfort ElementCategory = "CI"
)

const (
	// RainUnit is appended to precipitation probabilities.
	RainUnit = "%"

	// TemperatureUnit is appended to temperatures.
	TemperatureUnit = "°C"
)

// CacheKey returns the cache key under which a city's forecast is stored.
func CacheKey(code string) string {
	return "weather_" + NormalizeCityCode(code)
}

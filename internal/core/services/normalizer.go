package services

import (
	"fmt"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/domain"
	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

// elementSetters maps a weather element category to the interval field it fills.
// Categories missing from this table are ignored.
var elementSetters = map[domain.ElementCategory]func(*domain.ForecastInterval, string){
	domain.ElementWeather: func(f *domain.ForecastInterval, v string) { f.Weather = v },
	domain.ElementRain:    func(f *domain.ForecastInterval, v string) { f.Rain = v + domain.RainUnit },
	domain.ElementMinTemp: func(f *domain.ForecastInterval, v string) { f.MinTemp = v + domain.TemperatureUnit },
	domain.ElementMaxTemp: func(f *domain.ForecastInterval, v string) { f.MaxTemp = v + domain.TemperatureUnit },
	domain.ElementComfort: func(f *domain.ForecastInterval, v string) { f.Comfort = v },
}

// NormalizeForecast flattens a raw CWA payload into one record per time slice.
//
// The time axis is taken from the first weather element. An element whose
// series is shorter leaves its field empty for the missing slices.
//
// Returns:
//   - *domain.Forecast: Normalized forecast
//   - error: domain.ErrLocationNotFound when the payload has no location,
//     domain.ErrMalformedPayload when it has no weather elements
func NormalizeForecast(raw *ports.RawForecast) (*domain.Forecast, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedPayload)
	}

	if len(raw.Records.Location) == 0 {
		return nil, domain.ErrLocationNotFound
	}

	location := raw.Records.Location[0]
	elements := location.WeatherElement

	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: location %q has no weather elements",
			domain.ErrMalformedPayload, location.LocationName)
	}

	axis := elements[0].Time
	forecast := &domain.Forecast{
		City:       location.LocationName,
		UpdateTime: raw.Records.DatasetDescription,
		Forecasts:  make([]domain.ForecastInterval, 0, len(axis)),
	}

	for i, slot := range axis {
		interval := domain.ForecastInterval{
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		}

		for _, element := range elements {
			set, ok := elementSetters[domain.ElementCategory(element.ElementName)]

			if !ok || i >= len(element.Time) {
				continue
			}

			set(&interval, element.Time[i].Parameter.ParameterName)
		}

		forecast.Forecasts = append(forecast.Forecasts, interval)
	}

	return forecast, nil
}

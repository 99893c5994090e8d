package ports

// RawForecast mirrors the F-C0032-001 response of the CWA open data API.
// Only the fields the normalizer reads are decoded.
type RawForecast struct {
	Success string     `json:"success"`
	Records RawRecords `json:"records"`
}

// RawRecords holds the dataset level description and the location list.
type RawRecords struct {
	DatasetDescription string        `json:"datasetDescription"`
	Location           []RawLocation `json:"location"`
}

// RawLocation is one location entry. A targeted query returns at most one.
type RawLocation struct {
	LocationName   string              `json:"locationName"`
	WeatherElement []RawWeatherElement `json:"weatherElement"`
}

// RawWeatherElement is one named time series, such as "Wx" or "MinT".
type RawWeatherElement struct {
	ElementName string        `json:"elementName"`
	Time        []RawTimeSlot `json:"time"`
}

// RawTimeSlot is a single value of a weather element.
type RawTimeSlot struct {
	StartTime string       `json:"startTime"`
	EndTime   string       `json:"endTime"`
	Parameter RawParameter `json:"parameter"`
}

// RawParameter carries the value of a time slot.
type RawParameter struct {
	ParameterName  string `json:"parameterName"`
	ParameterValue string `json:"parameterValue,omitempty"`
	ParameterUnit  string `json:"parameterUnit,omitempty"`
}

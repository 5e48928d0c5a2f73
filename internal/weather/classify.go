package weather

// Fixed limits for the route suitability check.
const (
	maxTemperatureC   = 35.0
	minTemperatureC   = 0.0
	maxWindSpeed      = 50.0 // km/h, the unit both route providers report
	maxPrecipitationM = 2.0  // mm
)

// ConditionSample is the input to IsBadWeather. WindSpeed must already be in
// km/h and Precipitation in millimetres.
type ConditionSample struct {
	Temperature   float64
	WindSpeed     float64
	Precipitation float64
}

// IsBadWeather reports whether a reading is unsuitable for travel: too hot,
// freezing, too windy or too wet.
func IsBadWeather(s ConditionSample) bool {
	return s.Temperature > maxTemperatureC ||
		s.Temperature < minTemperatureC ||
		s.WindSpeed > maxWindSpeed ||
		s.Precipitation > maxPrecipitationM
}

// Sample converts a current-conditions reading into classifier input.
func (c Conditions) Sample() ConditionSample {
	return ConditionSample{
		Temperature:   c.TemperatureC,
		WindSpeed:     c.WindSpeedKph,
		Precipitation: c.PrecipitationMM,
	}
}

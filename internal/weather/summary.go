package weather

import "math"

// VariableSummary holds the range and mean of one variable over a series.
// Missing (NaN) values are skipped; Count is the number of values used.
type VariableSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// SeriesSummary summarizes every hourly variable of a series, keyed by variable.
type SeriesSummary map[Variable]VariableSummary

// Summarize combines a series' samples into per-variable min/mean/max.
// Variables with no usable values get a zero summary.
func Summarize(series HourlySeries) SeriesSummary {
	out := make(SeriesSummary, len(HourlyVariables))

	for _, v := range HourlyVariables {
		var (
			sum   float64
			count int
			agg   = VariableSummary{Min: math.Inf(1), Max: math.Inf(-1)}
		)

		for _, smp := range series.Samples {
			x := smp.Value(v)
			if math.IsNaN(x) {
				continue
			}
			sum += x
			count++
			agg.Min = math.Min(agg.Min, x)
			agg.Max = math.Max(agg.Max, x)
		}

		if count == 0 {
			out[v] = VariableSummary{}
			continue
		}

		agg.Count = count
		agg.Mean = sum / float64(count)
		out[v] = agg
	}

	return out
}

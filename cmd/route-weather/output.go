package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/i474232898/route-weather/internal/weather"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes one row per distinct display name, in input order.
func printReport(w io.Writer, r weather.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PLACE\tLAT\tLON\tHOURS\tTEMP °C (min/mean/max)\tMAX WIND m/s\tMAX PRECIP %%\n")

	seen := make(map[string]bool, len(r.Names))
	for i, name := range r.Names {
		if seen[name] {
			continue
		}
		seen[name] = true

		city := r.Cities[name]
		p := r.Points[i]
		if !city.Found {
			fmt.Fprintf(tw, "%s\t-\t-\t0\t%s\t\t\n", name, city.Reason)
			continue
		}

		t := city.Summary[weather.Temperature]
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%d\t%.1f / %.1f / %.1f\t%.1f\t%.0f\n",
			name, p.Coordinate.Latitude, p.Coordinate.Longitude, city.Series.Len(),
			t.Min, t.Mean, t.Max,
			city.Summary[weather.WindSpeed].Max,
			city.Summary[weather.PrecipitationProbability].Max,
		)
	}
	return tw.Flush()
}

func printRoute(w io.Writer, r weather.RouteReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "END\tPLACE\tCONDITIONS\tTEMP °C\tWIND km/h\tPRECIP mm\tBAD\n")
	for _, row := range []struct {
		label string
		c     weather.Conditions
		bad   bool
	}{
		{"start", r.Start, r.StartBad},
		{"end", r.End, r.EndBad},
	} {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%t\n",
			row.label, row.c.Location, row.c.Text, row.c.TemperatureC, row.c.WindSpeedKph, row.c.PrecipitationMM, row.bad)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Unsuitable {
		_, err := fmt.Fprintln(w, "\nRoute is not suitable: bad weather at one or both ends.")
		return err
	}
	_, err := fmt.Fprintln(w, "\nRoute is suitable.")
	return err
}

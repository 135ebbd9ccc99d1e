package bench

import (
	"math"
	"time"
)

// Stat is the mean and sample standard deviation of one metric across runs.
type Stat struct {
	Metric string
	Mean   float64
	Stdev  float64
}

// summarize returns a zero deviation for fewer than two values.
func summarize(metric string, values []float64) Stat {
	s := Stat{Metric: metric}
	if len(values) == 0 {
		return s
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	s.Mean = sum / float64(len(values))
	if len(values) < 2 {
		return s
	}
	var sq float64
	for _, v := range values {
		sq += (v - s.Mean) * (v - s.Mean)
	}
	s.Stdev = math.Sqrt(sq / float64(len(values)-1))
	return s
}

func collect[T any](runs []T, metric func(T) float64) []float64 {
	out := make([]float64, len(runs))
	for i, r := range runs {
		out[i] = metric(r)
	}
	return out
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Lookup returns the named metric, or a zero Stat when it is absent.
func Lookup(stats []Stat, metric string) Stat {
	for _, s := range stats {
		if s.Metric == metric {
			return s
		}
	}
	return Stat{Metric: metric}
}

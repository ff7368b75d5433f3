package stats

import "math"

// Summary describes a series of samples.
type Summary struct {
	Count uint64  `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Series accumulates samples without keeping them.
type Series struct {
	count uint64
	sum   float64
	sumSq float64
	min   uint64
	max   uint64
}

// Add records one sample.
func (s *Series) Add(v uint64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}

	if v > s.max {
		s.max = v
	}

	f := float64(v)
	s.count++
	s.sum += f
	s.sumSq += f * f
}

// Count returns the number of samples.
func (s *Series) Count() uint64 {
	return s.count
}

// Summary returns the mean, the population standard deviation and the range
// of the samples. An empty series summarizes to zeros.
func (s *Series) Summary() Summary {
	if s.count == 0 {
		return Summary{}
	}

	n := float64(s.count)
	mean := s.sum / n
	variance := s.sumSq/n - mean*mean

	return Summary{
		Count: s.count,
		Mean:  mean,
		Std:   math.Sqrt(math.Max(variance, 0)),
		Min:   float64(s.min),
		Max:   float64(s.max),
	}
}

// Reset forgets every sample.
func (s *Series) Reset() {
	*s = Series{}
}

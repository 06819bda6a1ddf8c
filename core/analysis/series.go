package analysis

import "math"

// series is one PID's readings in time order. Readings whose value failed
// numeric coercion stay in the series as invalid slots: value statistics
// skip them, while percentage-of-readings denominators count every slot,
// matching how boolean masks behave over coerced data.
type series struct {
	values []float64
	valid  []bool
}

func (s series) len() int { return len(s.values) }

func (s series) empty() bool {
	for _, ok := range s.valid {
		if ok {
			return false
		}
	}
	return true
}

func (s series) mean() float64 {
	sum, n := 0.0, 0
	for i, v := range s.values {
		if s.valid[i] {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func (s series) max() (float64, bool) {
	mx, found := 0.0, false
	for i, v := range s.values {
		if !s.valid[i] {
			continue
		}
		if !found || v > mx {
			mx = v
			found = true
		}
	}
	return mx, found
}

// variance returns the sample variance (n-1 denominator); ok is false when
// fewer than two valid readings exist.
func (s series) variance() (float64, bool) {
	m := s.mean()
	sum, n := 0.0, 0
	for i, v := range s.values {
		if s.valid[i] {
			d := v - m
			sum += d * d
			n++
		}
	}
	if n < 2 {
		return 0, false
	}
	return sum / float64(n-1), true
}

// countWhere counts valid readings satisfying pred.
func (s series) countWhere(pred func(float64) bool) int {
	n := 0
	for i, v := range s.values {
		if s.valid[i] && pred(v) {
			n++
		}
	}
	return n
}

// percentWhere is countWhere over the total slot count, as a percentage.
func (s series) percentWhere(pred func(float64) bool) float64 {
	if len(s.values) == 0 {
		return 0
	}
	return float64(s.countWhere(pred)) / float64(len(s.values)) * 100
}

// diff returns consecutive differences; the first slot and any slot whose
// neighbor pair includes an invalid reading are invalid.
func (s series) diff() series {
	d := series{
		values: make([]float64, len(s.values)),
		valid:  make([]bool, len(s.values)),
	}
	for i := 1; i < len(s.values); i++ {
		if s.valid[i] && s.valid[i-1] {
			d.values[i] = s.values[i] - s.values[i-1]
			d.valid[i] = true
		}
	}
	return d
}

func (s series) abs() series {
	a := series{
		values: make([]float64, len(s.values)),
		valid:  make([]bool, len(s.valid)),
	}
	for i, v := range s.values {
		a.values[i] = math.Abs(v)
		a.valid[i] = s.valid[i]
	}
	return a
}

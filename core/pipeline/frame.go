package pipeline

import (
	"math"
	"sort"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// Frame is a wide-form table: one row per time value, one column per
// signal. Missing cells are NaN internally and are surfaced as absent
// through Value/Present, never as zero.
type Frame struct {
	Times   []float64
	Signals []string // first-appearance order
	columns map[string][]float64
}

// Rows returns the number of time rows in the frame.
func (f *Frame) Rows() int {
	return len(f.Times)
}

// Has reports whether the frame carries a column for the signal.
func (f *Frame) Has(signal string) bool {
	_, ok := f.columns[signal]
	return ok
}

// Value returns the cell at (row, signal) and whether it is present.
func (f *Frame) Value(row int, signal string) (float64, bool) {
	col, ok := f.columns[signal]
	if !ok || row < 0 || row >= len(col) {
		return 0, false
	}
	v := col[row]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Present returns the present (non-missing) values of a column in row order.
func (f *Frame) Present(signal string) []float64 {
	col, ok := f.columns[signal]
	if !ok {
		return nil
	}
	vals := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// Pivot groups samples by exact timestamp into a wide frame, aggregating
// duplicate (time, signal) pairs by arithmetic mean. Rows are ordered by
// time ascending; columns keep the order signals first appeared in.
func Pivot(samples []models.Sample) *Frame {
	type agg struct {
		sum float64
		n   int
	}

	byTime := make(map[int64]map[string]*agg)
	var signals []string
	seen := make(map[string]bool)

	for _, s := range samples {
		if !seen[s.Signal] {
			seen[s.Signal] = true
			signals = append(signals, s.Signal)
		}
		row := byTime[s.Time]
		if row == nil {
			row = make(map[string]*agg)
			byTime[s.Time] = row
		}
		a := row[s.Signal]
		if a == nil {
			a = &agg{}
			row[s.Signal] = a
		}
		a.sum += s.Value
		a.n++
	}

	times := make([]int64, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	f := &Frame{
		Times:   make([]float64, len(times)),
		Signals: signals,
		columns: make(map[string][]float64, len(signals)),
	}
	for _, sig := range signals {
		col := make([]float64, len(times))
		for i := range col {
			col[i] = math.NaN()
		}
		f.columns[sig] = col
	}
	for i, t := range times {
		f.Times[i] = float64(t)
		for sig, a := range byTime[t] {
			f.columns[sig][i] = a.sum / float64(a.n)
		}
	}
	return f
}

// Downsample collapses the frame to 1 Hz: rows sharing a 1-second bucket
// (floor(time/1000)*1000) are mean-aggregated per column, including the
// time column itself, so an output row's time is the mean of the original
// times in its bucket rather than the bucket boundary.
func Downsample(f *Frame) *Frame {
	if f.Rows() == 0 {
		return &Frame{Signals: f.Signals, columns: emptyColumns(f.Signals)}
	}

	bucketRows := make(map[int64][]int)
	var buckets []int64
	for i, t := range f.Times {
		b := int64(math.Floor(t/1000.0)) * 1000
		if _, ok := bucketRows[b]; !ok {
			buckets = append(buckets, b)
		}
		bucketRows[b] = append(bucketRows[b], i)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	out := &Frame{
		Times:   make([]float64, len(buckets)),
		Signals: f.Signals,
		columns: make(map[string][]float64, len(f.Signals)),
	}
	for _, sig := range f.Signals {
		out.columns[sig] = make([]float64, len(buckets))
	}

	for bi, b := range buckets {
		rows := bucketRows[b]
		sum := 0.0
		for _, ri := range rows {
			sum += f.Times[ri]
		}
		out.Times[bi] = sum / float64(len(rows))

		for _, sig := range f.Signals {
			col := f.columns[sig]
			vsum, n := 0.0, 0
			for _, ri := range rows {
				if v := col[ri]; !math.IsNaN(v) {
					vsum += v
					n++
				}
			}
			if n > 0 {
				out.columns[sig][bi] = vsum / float64(n)
			} else {
				out.columns[sig][bi] = math.NaN()
			}
		}
	}
	return out
}

// BuildFrame runs pivot then downsample over normalized samples.
func BuildFrame(samples []models.Sample) *Frame {
	return Downsample(Pivot(samples))
}

func emptyColumns(signals []string) map[string][]float64 {
	cols := make(map[string][]float64, len(signals))
	for _, sig := range signals {
		cols[sig] = nil
	}
	return cols
}

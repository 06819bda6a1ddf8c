package pipeline

import (
	"math"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// Idle heuristic: rows with engine speed below this count as idle.
const idleRPMThreshold = 900

// Summarize computes the KPI report for a wide frame. Per-signal blocks
// are emitted only when the signal column is present; reductions over zero
// values are omitted rather than raised. Session metadata is merged in
// verbatim when available, its absence is not an error.
func Summarize(f *Frame, meta *models.Session) map[string]interface{} {
	signals := make([]string, len(f.Signals))
	copy(signals, f.Signals)

	kpis := map[string]interface{}{
		"rows":    f.Rows(),
		"signals": signals,
	}
	if f.Rows() > 0 {
		start, end := minMax(f.Times)
		kpis["start"] = int64(start)
		kpis["end"] = int64(end)
		kpis["duration_seconds"] = (int64(end) - int64(start)) / 1000
	} else {
		kpis["start"] = int64(0)
		kpis["end"] = int64(0)
		kpis["duration_seconds"] = int64(0)
	}

	if rpm := f.Present("rpm"); len(rpm) > 0 {
		mn, mx := minMax(rpm)
		kpis["rpm_mean"] = mean(rpm)
		kpis["rpm_max"] = mx
		kpis["rpm_min"] = mn

		var idle []float64
		for _, v := range rpm {
			if v < idleRPMThreshold {
				idle = append(idle, v)
			}
		}
		if len(idle) > 0 {
			kpis["idleRPMMean"] = mean(idle)
			if std, ok := sampleStd(idle); ok {
				kpis["idleRPMStd"] = std
			} else {
				kpis["idleRPMStd"] = nil
			}
		}
	}

	if temp := f.Present("engineTemp"); len(temp) > 0 {
		mn, mx := minMax(temp)
		kpis["coolantRiseC"] = mx - mn
		kpis["coolantMax"] = mx
		kpis["coolantMin"] = mn
	}

	if speed := f.Present("speed"); len(speed) > 0 {
		_, mx := minMax(speed)
		kpis["speed_mean"] = mean(speed)
		kpis["speed_max"] = mx
	}

	if stft := f.Present("shortTermFuelTrim"); len(stft) > 0 {
		_, mx := minMax(stft)
		kpis["stft_mean"] = mean(stft)
		kpis["stft_max"] = mx
	}
	if ltft := f.Present("longTermFuelTrim"); len(ltft) > 0 {
		_, mx := minMax(ltft)
		kpis["ltft_mean"] = mean(ltft)
		kpis["ltft_max"] = mx
	}

	if meta != nil {
		dtc := meta.DTCCodes
		if dtc == nil {
			dtc = []string{}
		}
		kpis["sessionName"] = meta.Name
		kpis["dtcCodes"] = dtc
		kpis["vehicleId"] = meta.VehicleID
	}

	return kpis
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func minMax(xs []float64) (float64, float64) {
	mn, mx := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
	}
	return mn, mx
}

// sampleStd returns the sample standard deviation (n-1 denominator).
// ok is false when fewer than two values exist.
func sampleStd(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1)), true
}

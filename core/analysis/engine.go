package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrInvalidInput marks a request whose payload cannot be analyzed.
var ErrInvalidInput = errors.New("invalid or insufficient data provided")

// Insight is one analysis finding surfaced to the user.
type Insight struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Recommendation describes one predicted maintenance item.
type Recommendation struct {
	Component     string `json:"component"`
	Urgency       string `json:"urgency"`
	Description   string `json:"description"`
	EstimatedCost string `json:"estimated_cost"`
}

// Parameter is one OBD2 reading submitted for analysis. Valid is false
// when the reported value did not coerce to a number; such slots stay in
// the series so percentage denominators count them.
type Parameter struct {
	PID   string
	Value float64
	Valid bool
	At    time.Time
}

// DTC is one diagnostic trouble code with its current status.
type DTC struct {
	Code   string
	Status string
}

// Input is the validated payload for one analysis run.
type Input struct {
	Parameters  []Parameter
	DTCCodes    []DTC
	VehicleInfo map[string]interface{}
	HasLocation bool
}

// Engine is the rule-based OBD2 analyzer. Analysis results are JSON-shaped
// documents: a title, insights, metrics, plus per-type extras.
type Engine struct {
	thresholds map[string]Threshold
	now        func() time.Time
}

// NewEngine creates a new analysis engine with standard OBD2 thresholds.
func NewEngine() *Engine {
	return &Engine{
		thresholds: defaultThresholds(),
		now:        time.Now,
	}
}

// Threshold insights are emitted in this fixed order.
var thresholdOrder = []string{
	PIDEngineRPM,
	PIDVehicleSpeed,
	PIDCoolantTemp,
	PIDIntakeAirTemp,
	PIDThrottlePosition,
	PIDManifoldPressure,
	PIDEngineLoad,
	PIDFuelLevel,
}

// Analyze runs one analysis over a raw request payload and returns the
// result envelope. Unknown analysis types fall back to the general
// analysis. All faults come back inside the envelope with success=false,
// never as a panic or error return.
func (e *Engine) Analyze(analysisType string, data map[string]interface{}) map[string]interface{} {
	start := e.now()

	input, err := ParseInput(data)
	if err != nil {
		envelope := map[string]interface{}{
			"success": false,
		}
		if errors.Is(err, ErrInvalidInput) {
			envelope["error"] = "Invalid or insufficient data provided"
		} else {
			envelope["error"] = fmt.Sprintf("Analysis failed: %v", err)
			envelope["analysis_type"] = analysisType
			envelope["processing_time"] = float64(e.now().Sub(start).Microseconds()) / 1000.0
		}
		return envelope
	}

	var results map[string]interface{}
	switch analysisType {
	case "performance":
		results = e.analyzePerformance(input)
	case "diagnostics":
		results = e.analyzeDiagnostics(input)
	case "fuel_efficiency":
		results = e.analyzeFuelEfficiency(input)
	case "maintenance_prediction":
		results = e.predictMaintenance(input)
	case "driving_behavior":
		results = e.analyzeDrivingBehavior(input)
	default:
		results = e.generalAnalysis(input)
	}

	results["analysis_type"] = analysisType
	results["processing_time"] = float64(e.now().Sub(start).Microseconds()) / 1000.0
	results["timestamp"] = e.now().Format(time.RFC3339)
	results["data_points_analyzed"] = len(input.Parameters)
	results["vehicle_info"] = input.VehicleInfo
	results["success"] = true
	return results
}

// ParseInput validates and converts a raw analysis payload.
func ParseInput(data map[string]interface{}) (*Input, error) {
	rawParams, ok := data["parameters"]
	if !ok {
		return nil, ErrInvalidInput
	}
	list, ok := toList(rawParams)
	if !ok || len(list) == 0 {
		return nil, ErrInvalidInput
	}

	now := time.Now()
	params := make([]Parameter, 0, len(list))
	sawValue := false
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		pid, _ := m["pid"].(string)
		p := Parameter{PID: pid, At: now}
		if raw, ok := m["formattedValue"]; ok {
			sawValue = true
			if v, ok := coerceNumeric(raw); ok {
				p.Value = v
				p.Valid = true
			}
		}
		if at, ok := parseTime(m["timestamp"]); ok {
			p.At = at
		}
		params = append(params, p)
	}
	if len(params) == 0 {
		return nil, ErrInvalidInput
	}
	if !sawValue {
		return nil, errors.New("parameters missing formattedValue field")
	}
	sort.SliceStable(params, func(i, j int) bool { return params[i].At.Before(params[j].At) })

	input := &Input{Parameters: params}

	if rawDTC, ok := toList(data["dtcCodes"]); ok {
		for _, item := range rawDTC {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			code, _ := m["code"].(string)
			status, _ := m["status"].(string)
			input.DTCCodes = append(input.DTCCodes, DTC{Code: code, Status: status})
		}
	}

	if vi, ok := data["vehicleInfo"].(map[string]interface{}); ok {
		input.VehicleInfo = vi
	} else {
		input.VehicleInfo = map[string]interface{}{}
	}

	input.HasLocation = truthy(data["location"])
	return input, nil
}

// pidSeries collects one PID's readings in time order.
func pidSeries(input *Input, pid string) series {
	var s series
	for _, p := range input.Parameters {
		if p.PID == pid {
			s.values = append(s.values, p.Value)
			s.valid = append(s.valid, p.Valid)
		}
	}
	return s
}

func (e *Engine) analyzePerformance(input *Input) map[string]interface{} {
	insights := []Insight{}
	metrics := map[string]interface{}{}

	rpm := pidSeries(input, PIDEngineRPM)
	if !rpm.empty() {
		maxRPM, _ := rpm.max()
		stats := map[string]interface{}{
			"average_rpm":          rpm.mean(),
			"max_rpm":              maxRPM,
			"idle_time_percentage": rpm.percentWhere(func(v float64) bool { return v < 1000 }),
		}
		if v, ok := rpm.variance(); ok {
			stats["rpm_variance"] = v
		} else {
			stats["rpm_variance"] = nil
		}
		metrics["engine_rpm"] = stats

		if maxRPM > 6500 {
			insights = append(insights, Insight{
				Type:     "warning",
				Message:  fmt.Sprintf("High RPM detected: %.0f RPM. Consider checking engine load and driving habits.", maxRPM),
				Severity: "medium",
			})
		}
	}

	speed := pidSeries(input, PIDVehicleSpeed)
	if !speed.empty() {
		maxSpeed, _ := speed.max()
		stats := map[string]interface{}{
			"average_speed": speed.mean(),
			"max_speed":     maxSpeed,
		}
		if v, ok := speed.variance(); ok {
			stats["speed_variance"] = v
		} else {
			stats["speed_variance"] = nil
		}
		metrics["vehicle_speed"] = stats
	}

	load := pidSeries(input, PIDEngineLoad)
	if !load.empty() {
		maxLoad, _ := load.max()
		highLoadPct := load.percentWhere(func(v float64) bool { return v > 80 })
		metrics["engine_load"] = map[string]interface{}{
			"average_load":         load.mean(),
			"max_load":             maxLoad,
			"high_load_percentage": highLoadPct,
		}
		if highLoadPct > 20 {
			insights = append(insights, Insight{
				Type:     "info",
				Message:  fmt.Sprintf("Vehicle operates at high load %.1f%% of the time. This may affect fuel efficiency.", highLoadPct),
				Severity: "low",
			})
		}
	}

	return map[string]interface{}{
		"analysis_title": "Vehicle Performance Analysis",
		"insights":       insights,
		"metrics":        metrics,
		"visualizations": []interface{}{},
	}
}

func (e *Engine) analyzeDiagnostics(input *Input) map[string]interface{} {
	insights := []Insight{}
	dtcAnalysis := map[string]interface{}{}

	if len(input.DTCCodes) > 0 {
		active := 0
		breakdown := map[string]int{}
		for _, dtc := range input.DTCCodes {
			if dtc.Status != "cleared" {
				active++
			}
			breakdown[dtcCategory(dtc.Code)]++
		}
		dtcAnalysis["total_codes"] = len(input.DTCCodes)
		dtcAnalysis["active_codes"] = active
		dtcAnalysis["code_breakdown"] = breakdown

		if active > 0 {
			insights = append(insights, Insight{
				Type:     "error",
				Message:  fmt.Sprintf("Found %d active diagnostic trouble codes. Immediate attention recommended.", active),
				Severity: "high",
			})
		}
	}

	for _, pid := range thresholdOrder {
		threshold := e.thresholds[pid]
		s := pidSeries(input, pid)
		if s.empty() {
			continue
		}
		outOfRange := s.countWhere(func(v float64) bool {
			return v < threshold.NormalLow || v > threshold.NormalHigh
		})
		if outOfRange == 0 {
			continue
		}
		pct := float64(outOfRange) / float64(s.len()) * 100
		severity := "medium"
		if pct >= 10 {
			severity = "high"
		}
		insights = append(insights, Insight{
			Type: "warning",
			Message: fmt.Sprintf("%s: %.1f%% of readings outside normal range (%g-%g)",
				threshold.Name, pct, threshold.NormalLow, threshold.NormalHigh),
			Severity: severity,
		})
	}

	return map[string]interface{}{
		"analysis_title": "Diagnostic Analysis",
		"insights":       insights,
		"metrics":        map[string]interface{}{},
		"visualizations": []interface{}{},
		"dtc_analysis":   dtcAnalysis,
	}
}

func (e *Engine) analyzeFuelEfficiency(input *Input) map[string]interface{} {
	insights := []Insight{}
	metrics := map[string]interface{}{}
	var factors []float64

	load := pidSeries(input, PIDEngineLoad)
	if !load.empty() {
		loadEff := load.percentWhere(func(v float64) bool { return v >= 20 && v <= 60 })
		factors = append(factors, loadEff)
		metrics["load_efficiency"] = map[string]interface{}{
			"percentage_in_optimal_range": loadEff,
			"average_load":                load.mean(),
			"recommendation":              "Maintain engine load between 20-60% for optimal fuel efficiency",
		}
	}

	rpm := pidSeries(input, PIDEngineRPM)
	if !rpm.empty() {
		rpmEff := rpm.percentWhere(func(v float64) bool { return v >= 1500 && v <= 3000 })
		factors = append(factors, rpmEff)
		metrics["rpm_efficiency"] = map[string]interface{}{
			"percentage_in_optimal_range": rpmEff,
			"average_rpm":                 rpm.mean(),
		}
	}

	speed := pidSeries(input, PIDVehicleSpeed)
	if !speed.empty() {
		speedEff := speed.percentWhere(func(v float64) bool { return v >= 80 && v <= 120 })
		factors = append(factors, speedEff)

		aggressive := speed.diff().abs().countWhere(func(v float64) bool { return v > 10 })
		metrics["speed_efficiency"] = map[string]interface{}{
			"percentage_highway_speed":       speedEff,
			"average_speed":                  speed.mean(),
			"aggressive_acceleration_events": aggressive,
		}
		if float64(aggressive) > float64(speed.len())*0.1 {
			insights = append(insights, Insight{
				Type:     "warning",
				Message:  fmt.Sprintf("Detected %d aggressive acceleration events. Smoother acceleration can improve fuel efficiency by 10-15%%.", aggressive),
				Severity: "medium",
			})
		}
	}

	score := 0.0
	if len(factors) > 0 {
		for _, f := range factors {
			score += f
		}
		score /= float64(len(factors))

		rating := "Poor"
		switch {
		case score > 70:
			rating = "Excellent"
		case score > 50:
			rating = "Good"
		case score > 30:
			rating = "Fair"
		}
		insights = append(insights, Insight{
			Type:     "info",
			Message:  fmt.Sprintf("Overall fuel efficiency rating: %s (%.1f/100)", rating, score),
			Severity: "low",
		})
	}

	return map[string]interface{}{
		"analysis_title":   "Fuel Efficiency Analysis",
		"insights":         insights,
		"metrics":          metrics,
		"visualizations":   []interface{}{},
		"efficiency_score": score,
	}
}

func (e *Engine) predictMaintenance(input *Input) map[string]interface{} {
	recommendations := []Recommendation{}

	coolant := pidSeries(input, PIDCoolantTemp)
	if !coolant.empty() {
		avg := coolant.mean()
		maxTemp, _ := coolant.max()
		if avg > 95 {
			recommendations = append(recommendations, Recommendation{
				Component:     "Cooling System",
				Urgency:       "medium",
				Description:   fmt.Sprintf("Average coolant temperature is %.1f°C. Consider checking coolant level and thermostat.", avg),
				EstimatedCost: "$150-300",
			})
		}
		if maxTemp > 110 {
			recommendations = append(recommendations, Recommendation{
				Component:     "Cooling System",
				Urgency:       "high",
				Description:   fmt.Sprintf("Maximum coolant temperature reached %.1f°C. Immediate inspection recommended.", maxTemp),
				EstimatedCost: "$200-500",
			})
		}
	}

	load := pidSeries(input, PIDEngineLoad)
	if !load.empty() {
		highLoadPct := load.percentWhere(func(v float64) bool { return v > 80 })
		if highLoadPct > 30 {
			recommendations = append(recommendations, Recommendation{
				Component:     "Engine Oil",
				Urgency:       "medium",
				Description:   fmt.Sprintf("High engine load detected %.1f%% of the time. Consider more frequent oil changes.", highLoadPct),
				EstimatedCost: "$50-100",
			})
		}
	}

	rpm := pidSeries(input, PIDEngineRPM)
	if !rpm.empty() {
		if v, ok := rpm.variance(); ok && v > 500000 {
			recommendations = append(recommendations, Recommendation{
				Component:     "Engine Tuning",
				Urgency:       "medium",
				Description:   "High RPM variance detected. Engine tuning or idle adjustment may be needed.",
				EstimatedCost: "$100-250",
			})
		}
	}

	if year, ok := coerceNumeric(input.VehicleInfo["year"]); ok {
		age := e.now().Year() - int(year)
		if age > 5 {
			recommendations = append(recommendations, Recommendation{
				Component:     "General Maintenance",
				Urgency:       "low",
				Description:   fmt.Sprintf("Vehicle is %d years old. Consider comprehensive inspection of belts, hoses, and fluids.", age),
				EstimatedCost: "$200-400",
			})
		}
	}

	return map[string]interface{}{
		"analysis_title":              "Predictive Maintenance Analysis",
		"insights":                    []Insight{},
		"metrics":                     map[string]interface{}{},
		"visualizations":              []interface{}{},
		"maintenance_recommendations": recommendations,
	}
}

func (e *Engine) analyzeDrivingBehavior(input *Input) map[string]interface{} {
	insights := []Insight{}
	metrics := map[string]interface{}{}
	var factors []float64

	speed := pidSeries(input, PIDVehicleSpeed)
	if !speed.empty() {
		changes := speed.diff().abs()
		smoothPct := changes.percentWhere(func(v float64) bool { return v < 5 })
		factors = append(factors, smoothPct)
		metrics["speed_consistency"] = map[string]interface{}{
			"smooth_driving_percentage": smoothPct,
			"average_speed_change":      changes.mean(),
		}

		if input.HasLocation {
			speedingEvents := speed.countWhere(func(v float64) bool { return v > 60 })
			speedingPct := float64(speedingEvents) / float64(speed.len()) * 100
			metrics["speeding"] = map[string]interface{}{
				"speeding_events":     speedingEvents,
				"speeding_percentage": speedingPct,
			}
			if speedingPct > 10 {
				insights = append(insights, Insight{
					Type:     "warning",
					Message:  fmt.Sprintf("Speeding detected in %.1f%% of driving time. Consider adhering to speed limits for safety and fuel efficiency.", speedingPct),
					Severity: "medium",
				})
			}
		}
	}

	throttle := pidSeries(input, PIDThrottlePosition)
	if !throttle.empty() {
		changes := throttle.diff()
		aggressive := changes.countWhere(func(v float64) bool { return v > 20 })
		gentlePct := changes.percentWhere(func(v float64) bool { return v < 10 && v > -10 })
		factors = append(factors, gentlePct)
		metrics["acceleration_patterns"] = map[string]interface{}{
			"gentle_driving_percentage":      gentlePct,
			"aggressive_acceleration_events": aggressive,
		}
	}

	score := 0.0
	if len(factors) > 0 {
		for _, f := range factors {
			score += f
		}
		score /= float64(len(factors))

		rating := "Needs Improvement"
		switch {
		case score > 80:
			rating = "Excellent"
		case score > 60:
			rating = "Good"
		case score > 40:
			rating = "Fair"
		}
		insights = append(insights, Insight{
			Type:     "info",
			Message:  fmt.Sprintf("Driving behavior rating: %s (%.1f/100)", rating, score),
			Severity: "low",
		})
	}

	return map[string]interface{}{
		"analysis_title": "Driving Behavior Analysis",
		"insights":       insights,
		"metrics":        metrics,
		"visualizations": []interface{}{},
		"behavior_score": score,
	}
}

func (e *Engine) generalAnalysis(input *Input) map[string]interface{} {
	performance := e.analyzePerformance(input)
	diagnostics := e.analyzeDiagnostics(input)
	efficiency := e.analyzeFuelEfficiency(input)
	maintenance := e.predictMaintenance(input)
	behavior := e.analyzeDrivingBehavior(input)

	var insights []Insight
	for _, results := range []map[string]interface{}{performance, diagnostics, efficiency, maintenance, behavior} {
		if list, ok := results["insights"].([]Insight); ok {
			insights = append(insights, list...)
		}
	}
	severityRank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(insights, func(i, j int) bool {
		return severityRank[insights[i].Severity] < severityRank[insights[j].Severity]
	})
	if insights == nil {
		insights = []Insight{}
	}

	recommendations, _ := maintenance["maintenance_recommendations"].([]Recommendation)
	highPriority := 0
	for _, in := range insights {
		if in.Severity == "high" {
			highPriority++
		}
	}

	return map[string]interface{}{
		"analysis_title": "Comprehensive Vehicle Analysis",
		"insights":       insights,
		"metrics": map[string]interface{}{
			"performance":      performance["metrics"],
			"diagnostics":      diagnostics["metrics"],
			"fuel_efficiency":  efficiency["metrics"],
			"maintenance":      recommendations,
			"driving_behavior": behavior["metrics"],
		},
		"visualizations": []interface{}{},
		"summary": map[string]interface{}{
			"total_insights":       len(insights),
			"high_priority_issues": highPriority,
			"efficiency_score":     efficiency["efficiency_score"],
			"behavior_score":       behavior["behavior_score"],
			"maintenance_items":    len(recommendations),
		},
	}
}

func dtcCategory(code string) string {
	switch {
	case len(code) >= 2 && code[:2] == "P0":
		return "Powertrain"
	case len(code) >= 2 && code[:2] == "B0":
		return "Body"
	case len(code) >= 2 && code[:2] == "C0":
		return "Chassis"
	case len(code) >= 2 && code[:2] == "U0":
		return "Network"
	default:
		return "Unknown"
	}
}

func toList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func coerceNumeric(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)), true
	case time.Time:
		return t, true
	default:
		return time.Time{}, false
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	case float64:
		return t != 0
	default:
		return true
	}
}

package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func param(pid string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"pid": pid, "formattedValue": value}
}

func params(pid string, values ...float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = param(pid, v)
	}
	return out
}

func testEngine() *Engine {
	e := NewEngine()
	e.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestAnalyzeRejectsInvalidPayloads(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name string
		data map[string]interface{}
	}{
		{"missing parameters", map[string]interface{}{}},
		{"empty parameters", map[string]interface{}{"parameters": []interface{}{}}},
		{"wrong parameters type", map[string]interface{}{"parameters": "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Analyze("performance", tt.data)
			assert.Equal(t, false, result["success"])
			assert.Equal(t, "Invalid or insufficient data provided", result["error"])
		})
	}
}

func TestAnalyzeEnvelope(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters":  params(PIDEngineRPM, 800, 900),
		"vehicleInfo": map[string]interface{}{"make": "Honda"},
	}

	result := e.Analyze("performance", data)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, "performance", result["analysis_type"])
	assert.Equal(t, 2, result["data_points_analyzed"])
	assert.Equal(t, map[string]interface{}{"make": "Honda"}, result["vehicle_info"])
	assert.Contains(t, result, "processing_time")
	assert.Contains(t, result, "timestamp")
}

func TestPerformanceInsights(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters": append(
			params(PIDEngineRPM, 800, 7000, 2000),
			params(PIDEngineLoad, 90, 85, 30, 40)...,
		),
	}

	result := e.Analyze("performance", data)

	insights := result["insights"].([]Insight)
	require.Len(t, insights, 2)
	assert.Equal(t, "warning", insights[0].Type)
	assert.Contains(t, insights[0].Message, "High RPM detected: 7000 RPM")
	assert.Equal(t, "info", insights[1].Type)
	assert.Contains(t, insights[1].Message, "high load 50.0% of the time")

	metrics := result["metrics"].(map[string]interface{})
	rpmStats := metrics["engine_rpm"].(map[string]interface{})
	assert.InDelta(t, 3266.67, rpmStats["average_rpm"].(float64), 0.01)
	assert.Equal(t, 7000.0, rpmStats["max_rpm"])
	assert.InDelta(t, 33.33, rpmStats["idle_time_percentage"].(float64), 0.01)
}

func TestPerformanceSkipsAbsentPIDs(t *testing.T) {
	e := testEngine()
	result := e.Analyze("performance", map[string]interface{}{
		"parameters": params(PIDCoolantTemp, 90, 92),
	})

	metrics := result["metrics"].(map[string]interface{})
	assert.Empty(t, metrics)
	assert.Empty(t, result["insights"].([]Insight))
}

func TestDiagnosticsDTCCategorization(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters": params(PIDEngineRPM, 2000),
		"dtcCodes": []interface{}{
			map[string]interface{}{"code": "P0301", "status": "active"},
			map[string]interface{}{"code": "B0012", "status": "active"},
			map[string]interface{}{"code": "U0101", "status": "cleared"},
			map[string]interface{}{"code": "X9999", "status": "active"},
		},
	}

	result := e.Analyze("diagnostics", data)

	dtc := result["dtc_analysis"].(map[string]interface{})
	assert.Equal(t, 4, dtc["total_codes"])
	assert.Equal(t, 3, dtc["active_codes"])
	breakdown := dtc["code_breakdown"].(map[string]int)
	assert.Equal(t, 1, breakdown["Powertrain"])
	assert.Equal(t, 1, breakdown["Body"])
	assert.Equal(t, 1, breakdown["Network"])
	assert.Equal(t, 1, breakdown["Unknown"])

	insights := result["insights"].([]Insight)
	require.NotEmpty(t, insights)
	assert.Equal(t, "error", insights[0].Type)
	assert.Contains(t, insights[0].Message, "3 active diagnostic trouble codes")
}

func TestDiagnosticsOutOfRangeSeverity(t *testing.T) {
	e := testEngine()

	// 1 of 20 readings out of range: 5% -> medium.
	values := make([]float64, 20)
	for i := range values {
		values[i] = 90
	}
	values[0] = 120
	result := e.Analyze("diagnostics", map[string]interface{}{
		"parameters": params(PIDCoolantTemp, values...),
	})
	insights := result["insights"].([]Insight)
	require.Len(t, insights, 1)
	assert.Equal(t, "medium", insights[0].Severity)
	assert.Contains(t, insights[0].Message, "Engine Coolant Temperature: 5.0% of readings outside normal range (80-105)")

	// Half out of range -> high.
	result = e.Analyze("diagnostics", map[string]interface{}{
		"parameters": params(PIDCoolantTemp, 120, 90),
	})
	insights = result["insights"].([]Insight)
	require.Len(t, insights, 1)
	assert.Equal(t, "high", insights[0].Severity)
}

func TestFuelEfficiencyScoreAndRating(t *testing.T) {
	e := testEngine()
	// All readings inside the optimal bands: every factor 100.
	data := map[string]interface{}{
		"parameters": append(append(
			params(PIDEngineLoad, 30, 40, 50),
			params(PIDEngineRPM, 2000, 2500)...),
			params(PIDVehicleSpeed, 90, 100)...),
	}

	result := e.Analyze("fuel_efficiency", data)

	assert.Equal(t, 100.0, result["efficiency_score"])
	insights := result["insights"].([]Insight)
	require.NotEmpty(t, insights)
	last := insights[len(insights)-1]
	assert.Contains(t, last.Message, "Excellent (100.0/100)")
}

func TestFuelEfficiencyAggressiveAcceleration(t *testing.T) {
	e := testEngine()
	// Big jumps between consecutive speed readings.
	data := map[string]interface{}{
		"parameters": params(PIDVehicleSpeed, 10, 40, 10, 50, 20),
	}

	result := e.Analyze("fuel_efficiency", data)

	metrics := result["metrics"].(map[string]interface{})
	speedEff := metrics["speed_efficiency"].(map[string]interface{})
	assert.Equal(t, 4, speedEff["aggressive_acceleration_events"])

	insights := result["insights"].([]Insight)
	var found bool
	for _, in := range insights {
		if in.Type == "warning" {
			assert.Contains(t, in.Message, "4 aggressive acceleration events")
			found = true
		}
	}
	assert.True(t, found)
}

func TestMaintenancePrediction(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters": append(
			params(PIDCoolantTemp, 96, 112, 98),
			params(PIDEngineLoad, 90, 85, 95)...,
		),
		"vehicleInfo": map[string]interface{}{"year": float64(2015)},
	}

	result := e.Analyze("maintenance_prediction", data)

	recs := result["maintenance_recommendations"].([]Recommendation)
	components := make([]string, len(recs))
	for i, r := range recs {
		components[i] = r.Component
	}
	assert.Equal(t, []string{"Cooling System", "Cooling System", "Engine Oil", "General Maintenance"}, components)
	assert.Equal(t, "high", recs[1].Urgency)
	assert.Contains(t, recs[3].Description, "9 years old")
}

func TestDrivingBehaviorScore(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters": append(
			params(PIDVehicleSpeed, 50, 52, 53, 54),
			params(PIDThrottlePosition, 20, 22, 25, 24)...,
		),
		"location": map[string]interface{}{"lat": 1.0, "lon": 2.0},
	}

	result := e.Analyze("driving_behavior", data)

	metrics := result["metrics"].(map[string]interface{})
	consistency := metrics["speed_consistency"].(map[string]interface{})
	assert.Equal(t, 75.0, consistency["smooth_driving_percentage"])
	assert.Contains(t, metrics, "speeding")

	score := result["behavior_score"].(float64)
	assert.Equal(t, 75.0, score)
}

func TestDrivingBehaviorNoLocationSkipsSpeeding(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters": params(PIDVehicleSpeed, 80, 85, 90),
	}

	result := e.Analyze("driving_behavior", data)

	metrics := result["metrics"].(map[string]interface{})
	assert.NotContains(t, metrics, "speeding")
}

func TestGeneralAnalysisCombines(t *testing.T) {
	e := testEngine()
	data := map[string]interface{}{
		"parameters": append(append(
			params(PIDEngineRPM, 7000, 800),
			params(PIDCoolantTemp, 120, 118)...),
			params(PIDVehicleSpeed, 90, 95)...),
		"dtcCodes": []interface{}{
			map[string]interface{}{"code": "P0420", "status": "active"},
		},
	}

	result := e.Analyze("general", data)

	insights := result["insights"].([]Insight)
	require.NotEmpty(t, insights)
	// Sorted by severity: high entries first.
	assert.Equal(t, "high", insights[0].Severity)
	for i := 1; i < len(insights); i++ {
		rank := map[string]int{"high": 0, "medium": 1, "low": 2}
		assert.GreaterOrEqual(t, rank[insights[i].Severity], rank[insights[i-1].Severity])
	}

	summary := result["summary"].(map[string]interface{})
	assert.Equal(t, len(insights), summary["total_insights"])
	assert.Contains(t, summary, "efficiency_score")
	assert.Contains(t, summary, "behavior_score")
	assert.Contains(t, summary, "maintenance_items")
}

func TestUnknownAnalysisTypeFallsBackToGeneral(t *testing.T) {
	e := testEngine()
	result := e.Analyze("bogus", map[string]interface{}{
		"parameters": params(PIDEngineRPM, 2000),
	})

	assert.Equal(t, true, result["success"])
	assert.Equal(t, "Comprehensive Vehicle Analysis", result["analysis_title"])
	assert.Equal(t, "bogus", result["analysis_type"])
}

func TestParseInputCoercion(t *testing.T) {
	input, err := ParseInput(map[string]interface{}{
		"parameters": []interface{}{
			param(PIDEngineRPM, "1500.5"),
			param(PIDEngineRPM, "not numeric"),
			param(PIDEngineRPM, float64(2000)),
		},
	})
	require.NoError(t, err)

	require.Len(t, input.Parameters, 3)
	assert.True(t, input.Parameters[0].Valid)
	assert.Equal(t, 1500.5, input.Parameters[0].Value)
	assert.False(t, input.Parameters[1].Valid)
	assert.True(t, input.Parameters[2].Valid)
}

func TestParseInputMissingFormattedValue(t *testing.T) {
	e := testEngine()
	result := e.Analyze("performance", map[string]interface{}{
		"parameters": []interface{}{
			map[string]interface{}{"pid": PIDEngineRPM, "value": float64(900)},
		},
	})

	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "Analysis failed")
}

package analysis

// Standard OBD2 PIDs the analyzers inspect.
const (
	PIDEngineRPM        = "010C"
	PIDVehicleSpeed     = "010D"
	PIDCoolantTemp      = "0105"
	PIDIntakeAirTemp    = "010F"
	PIDThrottlePosition = "0111"
	PIDManifoldPressure = "010B"
	PIDEngineLoad       = "0104"
	PIDFuelLevel        = "012F"
)

// Threshold holds the normal operating range for one OBD2 parameter.
type Threshold struct {
	Name           string
	NormalLow      float64
	NormalHigh     float64
	CriticalHigh   float64
	CriticalLow    float64
	HasCriticalLow bool
}

func defaultThresholds() map[string]Threshold {
	return map[string]Threshold{
		PIDEngineRPM:        {Name: "Engine RPM", NormalLow: 600, NormalHigh: 6500, CriticalHigh: 7000},
		PIDVehicleSpeed:     {Name: "Vehicle Speed", NormalLow: 0, NormalHigh: 200, CriticalHigh: 250},
		PIDCoolantTemp:      {Name: "Engine Coolant Temperature", NormalLow: 80, NormalHigh: 105, CriticalHigh: 115},
		PIDIntakeAirTemp:    {Name: "Intake Air Temperature", NormalLow: -10, NormalHigh: 60, CriticalHigh: 80},
		PIDThrottlePosition: {Name: "Throttle Position", NormalLow: 0, NormalHigh: 100, CriticalHigh: 100},
		PIDManifoldPressure: {Name: "Intake Manifold Pressure", NormalLow: 20, NormalHigh: 100, CriticalHigh: 120},
		PIDEngineLoad:       {Name: "Engine Load", NormalLow: 0, NormalHigh: 85, CriticalHigh: 95},
		PIDFuelLevel:        {Name: "Fuel Level", NormalLow: 10, NormalHigh: 100, CriticalLow: 5, HasCriticalLow: true},
	}
}

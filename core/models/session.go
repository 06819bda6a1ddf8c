package models

import "time"

// Session holds the stored metadata for one diagnostic session
type Session struct {
	ID        string
	Name      string
	VehicleID string
	DTCCodes  []string
	CreatedAt time.Time
	MetaJSON  map[string]interface{}
}

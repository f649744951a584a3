package gps

import "time"

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Stamp         time.Time `json:"stamp"`       // receive time
	Time          string    `json:"time"`        // e.g. "12:34:56.0000"
	Date          string    `json:"date"`        // e.g. "06/12/25"
	Latitude      float64   `json:"lat"`         // decimal degrees
	Longitude     float64   `json:"lon"`         // decimal degrees
	Altitude      float64   `json:"alt"`         // metres above mean sea level
	FixQuality    string    `json:"fix_quality"` // GGA quality indicator, "0" = invalid
	NumSatellites int64     `json:"num_sats"`
	HDOP          float64   `json:"hdop"`
	SpeedKnots    float64   `json:"speed_knots"` // speed over ground
	CourseDeg     float64   `json:"course_deg"`  // course over ground, clockwise from north
	Validity      string    `json:"validity"`    // "A" (valid) / "V" (void), etc.
}

// Valid reports whether the receiver had a position solution.
func (f Fix) Valid() bool {
	return f.FixQuality != "" && f.FixQuality != "0"
}

package gps

import (
	"fmt"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Assembler merges NMEA sentences into fixes. RMC sentences carry the date,
// speed and course; a fix is emitted on every GGA sentence, which carries
// position, altitude and solution quality.
type Assembler struct {
	current Fix
	now     func() time.Time
}

// NewAssembler returns an Assembler stamping fixes with the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// ParseLine parses one raw line from the receiver. Lines that are not NMEA
// sentences return (nil, nil).
func ParseLine(line string) (nmea.Sentence, error) {
	line = strings.TrimSpace(line)
	// NMEA sentences usually start with '$'
	if line == "" || !strings.HasPrefix(line, "$") {
		return nil, nil
	}
	s, err := nmea.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("nmea parse %q: %w", line, err)
	}
	return s, nil
}

// Update folds one sentence into the running fix. ok is true when a
// complete fix was assembled.
func (a *Assembler) Update(s nmea.Sentence) (fix Fix, ok bool) {
	switch s.DataType() {
	case nmea.TypeRMC:
		m := s.(nmea.RMC)
		a.current.Time = m.Time.String()
		a.current.Date = m.Date.String()
		a.current.SpeedKnots = m.Speed
		a.current.CourseDeg = m.Course
		a.current.Validity = m.Validity
		return Fix{}, false

	case nmea.TypeGGA:
		m := s.(nmea.GGA)
		a.current.Stamp = a.now()
		a.current.Time = m.Time.String()
		a.current.Latitude = m.Latitude
		a.current.Longitude = m.Longitude
		a.current.Altitude = m.Altitude
		a.current.FixQuality = m.FixQuality
		a.current.NumSatellites = m.NumSatellites
		a.current.HDOP = m.HDOP
		return a.current, true

	default:
		// GSA, GSV, VTG, ... are not needed for a position fix
		return Fix{}, false
	}
}

package gps

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/relabs-tech/frame_alignment/internal/filter"
	"github.com/relabs-tech/frame_alignment/internal/geom"
	"github.com/relabs-tech/frame_alignment/internal/odometry"
)

const knotsToMetresPerSecond = 0.514444

// Variances are the position variances (m^2) a receiver reports for each
// kind of solution. Single-point and differential solutions are reported
// with the small band values, filtered solutions with the large one.
type Variances struct {
	SinglePoint  float64
	Differential float64
	Filtered     float64
}

// DefaultVariances matches the receiver convention the calibration node's
// remapper expects.
func DefaultVariances() Variances {
	return Variances{
		SinglePoint:  filter.DefaultUnitVariance,
		Differential: filter.DefaultSmallVariance,
		Filtered:     filter.DefaultLargeVariance,
	}
}

// For returns the variance reported for a GGA fix quality, and false for
// invalid fixes.
func (v Variances) For(quality string) (float64, bool) {
	switch quality {
	case "1": // GPS
		return v.SinglePoint, true
	case "2", "3", "4": // DGPS, PPS, RTK
		return v.Differential, true
	case "5", "6": // float RTK, dead reckoning
		return v.Filtered, true
	default:
		return 0, false
	}
}

// Projector maps geodetic fixes onto a planar coordinate system.
type Projector struct {
	epsg    int
	forward func(a, b, c float64) (a2, b2, c2 float64)
}

// NewProjector builds a projection from WGS84 (EPSG:4326) to epsg.
func NewProjector(epsg int) (*Projector, error) {
	if epsg <= 0 {
		return nil, fmt.Errorf("invalid EPSG code %d", epsg)
	}
	f := wgs84.EPSG().Transform(4326, epsg)
	// unsupported codes yield NaN rather than an error
	if x, y, _ := f(0, 0, 0); math.IsNaN(x) || math.IsNaN(y) {
		return nil, fmt.Errorf("EPSG:%d is not supported", epsg)
	}
	return &Projector{epsg: epsg, forward: f}, nil
}

// EPSG returns the target code.
func (p *Projector) EPSG() int {
	return p.epsg
}

// Project converts latitude/longitude in degrees and altitude in metres
// into planar x (easting), y (northing) and z.
func (p *Projector) Project(lat, lon, alt float64) geom.Vec3 {
	x, y, _ := p.forward(lon, lat, 0)
	return geom.Vec3{X: x, Y: y, Z: alt}
}

// Odometry converts a fix into the odometry message consumed by the
// calibration node. ok is false for fixes without a position solution.
func (p *Projector) Odometry(fix Fix, v Variances, worldFrame, gpsFrame string) (odometry.Odometry, bool) {
	if !fix.Valid() {
		return odometry.Odometry{}, false
	}
	variance, ok := v.For(fix.FixQuality)
	if !ok {
		return odometry.Odometry{}, false
	}

	o := odometry.Odometry{
		Stamp:        fix.Stamp,
		FrameID:      worldFrame,
		ChildFrameID: gpsFrame,
		Pose: odometry.Pose{
			Position:    p.Project(fix.Latitude, fix.Longitude, fix.Altitude),
			Orientation: geom.IdentityQuaternion(),
		},
	}
	o.Covariance[odometry.VarX] = variance
	o.Covariance[odometry.VarY] = variance
	o.Covariance[odometry.VarZ] = variance

	speed := fix.SpeedKnots * knotsToMetresPerSecond
	course := fix.CourseDeg * math.Pi / 180
	o.Twist.Linear = geom.Vec3{X: speed * math.Sin(course), Y: speed * math.Cos(course)}
	return o, true
}

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// Reading is one sample from the inertial orientation sensor.
type Reading struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"` // sensor mounting frame

	Orientation           geom.Quaternion `json:"orientation"`
	OrientationCovariance [9]float64      `json:"orientation_covariance"`

	AngularVelocity           geom.Vec3  `json:"angular_velocity"` // rad/s
	AngularVelocityCovariance [9]float64 `json:"angular_velocity_covariance"`

	LinearAcceleration           geom.Vec3  `json:"linear_acceleration"` // m/s²
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

// Pose is roll/pitch/yaw in degrees, used for human-facing output.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide orientation readings over time.
type Source interface {
	Next() (Reading, error)
}

// PoseFromQuaternion converts a rotation into Z-Y-X Euler angles in degrees.
func PoseFromQuaternion(q geom.Quaternion) Pose {
	q = q.Normalize()

	rollRad := math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))

	sinPitch := 2 * (q.W*q.Y - q.Z*q.X)
	sinPitch = math.Max(-1, math.Min(1, sinPitch))
	pitchRad := math.Asin(sinPitch)

	yawRad := q.Yaw()

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
		Yaw:   yawRad * 180.0 / math.Pi,
	}
}

// Pose returns the reading's orientation as Euler angles in degrees.
func (r Reading) Pose() Pose {
	return PoseFromQuaternion(r.Orientation)
}

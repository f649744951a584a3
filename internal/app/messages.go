package app

import (
	"time"

	"github.com/relabs-tech/frame_alignment/internal/align"
	"github.com/relabs-tech/frame_alignment/internal/calibration"
	"github.com/relabs-tech/frame_alignment/internal/filter"
	"github.com/relabs-tech/frame_alignment/internal/odometry"
)

// CalibrationMessage is the retained payload on the calibration topic. The
// pose carries the origin as position and the heading bias as a yaw.
type CalibrationMessage struct {
	Stamp       time.Time          `json:"stamp"`
	FrameID     string             `json:"frame_id"`
	Pose        odometry.Pose      `json:"pose"`
	Calibration calibration.Result `json:"calibration"`
}

func newCalibrationMessage(res calibration.Result, frameID string, stamp time.Time) CalibrationMessage {
	pos, rot := res.Pose()
	return CalibrationMessage{
		Stamp:       stamp,
		FrameID:     frameID,
		Pose:        odometry.Pose{Position: pos, Orientation: rot},
		Calibration: res,
	}
}

// StatusMessage is published periodically by the calibration node.
type StatusMessage struct {
	Stamp       time.Time            `json:"stamp"`
	Progress    calibration.Progress `json:"progress"`
	Calibration *calibration.Result  `json:"calibration,omitempty"`
	LastFix     filter.FixState      `json:"last_fix"`
	Stats       align.Stats          `json:"stats"`
	Dropped     int                  `json:"queue_dropped"`
	Frames      []string             `json:"frames"`
}

package app

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/frame_alignment/internal/config"
	"github.com/relabs-tech/frame_alignment/internal/logging"
	"github.com/relabs-tech/frame_alignment/internal/odometry"
	"github.com/relabs-tech/frame_alignment/internal/orientation"
)

func formatCalibration(m CalibrationMessage) string {
	return fmt.Sprintf(
		"[CAL ]  origin=(%.3f, %.3f) heading_bias=%.4f rad (%.2f°) frame=%s\n",
		m.Calibration.Origin.X, m.Calibration.Origin.Y,
		m.Calibration.HeadingBias, m.Calibration.HeadingBias*180/math.Pi,
		m.FrameID,
	)
}

func formatOdometry(tag string, o odometry.Odometry) string {
	p := o.Pose.Position
	v := o.PositionVariance()
	return fmt.Sprintf(
		"[%-4s]  x=%10.3f y=%10.3f z=%8.3f  yaw=%7.2f°  var=(%.4f, %.4f, %.4f)\n",
		tag, p.X, p.Y, p.Z, o.Pose.Orientation.Yaw()*180/math.Pi, v.X, v.Y, v.Z,
	)
}

func formatOrientation(r orientation.Reading) string {
	p := r.Pose()
	return fmt.Sprintf(
		"[IMU ]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  frame=%s\n",
		p.Roll, p.Pitch, p.Yaw, r.FrameID,
	)
}

func formatStatus(s StatusMessage) string {
	return fmt.Sprintf(
		"[STAT]  heading %d/%d (%s)  origin %d/%d (%s)  gps in=%d out=%d outliers=%d no_tf=%d\n",
		s.Progress.HeadingCount, s.Progress.Threshold, s.Progress.HeadingState,
		s.Progress.OriginCount, s.Progress.Threshold, s.Progress.OriginState,
		s.Stats.PositionIn, s.Stats.PositionOut, s.Stats.OutlierRejected, s.Stats.FrameUnavailable,
	)
}

// throttle lets one line per stream through every interval.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval, last: make(map[string]time.Time), now: time.Now}
}

func (t *throttle) allow(stream string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.last[stream]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.last[stream] = now
	return true
}

// RunConsoleMQTT prints the calibration node's outputs.
func RunConsoleMQTT() error {
	return runConsole(os.Stdout)
}

func runConsole(out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("console: configuration not initialised")
	}
	log := logging.Component(logging.New(os.Stderr, cfg.LogLevel), "console")

	client, err := connectMQTT(cfg.BrokerURL(), cfg.MQTTClientIDConsole, log)
	if err != nil {
		return err
	}

	if err := subscribeJSON(client, cfg.TopicCalibration, log, func(m CalibrationMessage) {
		fmt.Fprint(out, formatCalibration(m))
	}); err != nil {
		return err
	}
	// aligned streams are printed at most once per CONSOLE_LOG_INTERVAL
	th := newThrottle(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	if err := subscribeJSON(client, cfg.TopicGPSAligned, log, func(o odometry.Odometry) {
		if th.allow("gps") {
			fmt.Fprint(out, formatOdometry("GPS", o))
		}
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.TopicLidarAligned, log, func(o odometry.Odometry) {
		if th.allow("lidar") {
			fmt.Fprint(out, formatOdometry("LIDR", o))
		}
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.TopicIMUAligned, log, func(r orientation.Reading) {
		if th.allow("imu") {
			fmt.Fprint(out, formatOrientation(r))
		}
	}); err != nil {
		return err
	}
	if cfg.TopicStatus != "" {
		if err := subscribeJSON(client, cfg.TopicStatus, log, func(s StatusMessage) {
			fmt.Fprint(out, formatStatus(s))
		}); err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	client.Disconnect(250)
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package align turns raw sensor readings into body-frame readings, runs
// the bootstrap calibration on the satellite position stream and, once
// calibrated, re-expresses positions relative to the calibrated origin and
// heading.
package align

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/frame_alignment/internal/calibration"
	"github.com/relabs-tech/frame_alignment/internal/filter"
	"github.com/relabs-tech/frame_alignment/internal/geom"
	"github.com/relabs-tech/frame_alignment/internal/odometry"
	"github.com/relabs-tech/frame_alignment/internal/orientation"
	"github.com/relabs-tech/frame_alignment/internal/tf"
)

var (
	// ErrOutlierRejected marks a position fix dropped by the distance gate.
	ErrOutlierRejected = errors.New("position fix rejected as outlier")
	// ErrHeadingOutOfTolerance marks a bearing excluded from calibration.
	// The fix itself is still forwarded.
	ErrHeadingOutOfTolerance = errors.New("heading outside tolerance window")
)

// Publisher receives the pipeline's outputs.
type Publisher interface {
	PublishCalibration(res calibration.Result) error
	PublishOrientation(r orientation.Reading) error
	PublishPosition(o odometry.Odometry) error
	PublishOdometry(o odometry.Odometry) error
}

// Config is fixed at construction.
type Config struct {
	BodyFrame string

	// Mounting frames of each sensor. When empty the frame carried by the
	// message is used (ChildFrameID for odometry, FrameID for orientation).
	PositionFrame    string
	OrientationFrame string
	OdometryFrame    string

	SampleThreshold    int
	MaxFixDisplacement float64 // metres
	HeadingThreshold   float64 // radians
	Remapper           filter.Remapper
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.BodyFrame == "" {
		return errors.New("align: body frame is required")
	}
	if c.MaxFixDisplacement <= 0 {
		return fmt.Errorf("align: max fix displacement must be positive, got %v", c.MaxFixDisplacement)
	}
	if c.HeadingThreshold <= 0 {
		return fmt.Errorf("align: heading threshold must be positive, got %v", c.HeadingThreshold)
	}
	if err := c.Remapper.Validate(); err != nil {
		return fmt.Errorf("align: %w", err)
	}
	return nil
}

// Stats counts what happened to the readings seen so far.
type Stats struct {
	PositionIn     int `json:"position_in"`
	PositionOut    int `json:"position_out"`
	OrientationIn  int `json:"orientation_in"`
	OrientationOut int `json:"orientation_out"`
	OdometryIn     int `json:"odometry_in"`
	OdometryOut    int `json:"odometry_out"`

	FrameUnavailable      int `json:"frame_unavailable"`
	OutlierRejected       int `json:"outlier_rejected"`
	HeadingOutOfTolerance int `json:"heading_out_of_tolerance"`
	PublishErrors         int `json:"publish_errors"`
}

// Pipeline processes one reading at a time. It is not safe for concurrent
// use; callers serialise readings through a single goroutine.
type Pipeline struct {
	cfg      Config
	resolver tf.Resolver
	pub      Publisher
	log      zerolog.Logger

	acc    *calibration.Accumulator
	fix    filter.FixState
	result *calibration.Result
	stats  Stats
}

// New builds a pipeline.
func New(cfg Config, resolver tf.Resolver, pub Publisher, log zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil || pub == nil {
		return nil, errors.New("align: resolver and publisher are required")
	}
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		pub:      pub,
		log:      log.With().Str("component", "align").Logger(),
		acc:      calibration.NewAccumulator(cfg.SampleThreshold),
	}, nil
}

// Calibration returns the result once it exists.
func (p *Pipeline) Calibration() (calibration.Result, bool) {
	if p.result == nil {
		return calibration.Result{}, false
	}
	return *p.result, true
}

// Progress reports the accumulator state.
func (p *Pipeline) Progress() calibration.Progress {
	return p.acc.Progress()
}

// FixState returns the last accepted fix and computed heading.
func (p *Pipeline) FixState() filter.FixState {
	return p.fix
}

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

func frameOr(configured, fromMessage string) string {
	if configured != "" {
		return configured
	}
	return fromMessage
}

// HandlePosition processes one satellite position reading. A non-nil error
// means the reading was dropped; it wraps tf.ErrFrameUnavailable or
// ErrOutlierRejected.
func (p *Pipeline) HandlePosition(o odometry.Odometry) error {
	p.stats.PositionIn++

	source := frameOr(p.cfg.PositionFrame, o.ChildFrameID)
	t, err := p.resolver.Resolve(source, p.cfg.BodyFrame, o.Stamp)
	if err != nil {
		p.stats.FrameUnavailable++
		p.log.Debug().Err(err).Str("source", source).Msg("position: transform not available, dropping")
		return err
	}
	body := o.Transformed(t)
	body.ChildFrameID = p.cfg.BodyFrame

	candidate := body.Pose.Position.XY()
	prev := p.fix
	next, ok := filter.Accept(prev, candidate, p.cfg.MaxFixDisplacement)
	if !ok {
		p.stats.OutlierRejected++
		p.log.Debug().
			Float64("x", candidate.X).Float64("y", candidate.Y).
			Float64("dist", geom.Distance(prev.Position, candidate)).
			Msg("position: outlier rejected")
		return fmt.Errorf("fix (%.3f, %.3f) is %.3f m from last fix: %w",
			candidate.X, candidate.Y, geom.Distance(prev.Position, candidate), ErrOutlierRejected)
	}
	p.fix = next

	if prev.HasFix {
		if heading, ok := filter.HeadingBetween(prev.Position, candidate); ok {
			p.gateHeading(heading)
		}
	}
	if p.result == nil && p.acc.AddOriginSample(candidate.X, candidate.Y) {
		p.finalize()
	}

	p.cfg.Remapper.RemapPositionCovariance(&body.Covariance)

	if p.result != nil {
		body = p.correct(body)
	}

	if err := p.pub.PublishPosition(body); err != nil {
		p.stats.PublishErrors++
		p.log.Error().Err(err).Msg("position: publish failed")
		return nil
	}
	p.stats.PositionOut++
	return nil
}

func (p *Pipeline) gateHeading(heading float64) {
	gated, ok := filter.GateHeading(p.fix, heading, p.cfg.HeadingThreshold)
	previous := p.fix.Heading
	p.fix = gated
	if !ok {
		p.stats.HeadingOutOfTolerance++
		p.log.Debug().
			Err(ErrHeadingOutOfTolerance).
			Float64("heading", heading).Float64("previous", previous).
			Msg("position: heading excluded from calibration")
		return
	}
	if p.result == nil && p.acc.AddHeadingSample(heading) {
		p.finalize()
	}
}

// finalize publishes the calibration the moment both tracks complete.
func (p *Pipeline) finalize() {
	res, err := p.acc.Result()
	if err != nil {
		// unreachable: completion was reported by the same accumulator
		panic(fmt.Sprintf("align: calibration reported complete but %v", err))
	}
	p.result = &res

	p.log.Info().
		Float64("heading_bias", res.HeadingBias).
		Float64("origin_x", res.Origin.X).
		Float64("origin_y", res.Origin.Y).
		Msg("calibration complete")

	if err := p.pub.PublishCalibration(res); err != nil {
		p.stats.PublishErrors++
		p.log.Error().Err(err).Msg("calibration: publish failed")
	}
}

// correct applies the calibrated origin and heading to a body-frame pose.
func (p *Pipeline) correct(o odometry.Odometry) odometry.Odometry {
	res := *p.result
	o.Pose.Position = res.Correct(o.Pose.Position)
	o.Pose.Orientation = res.CorrectOrientation(o.Pose.Orientation)
	unbias := geom.QuaternionFromYaw(-res.HeadingBias)
	o.Covariance = geom.RotateCovariance6(o.Covariance, unbias)
	o.Twist.Linear = unbias.Rotate(o.Twist.Linear)
	return o
}

// HandleOrientation transforms an orientation reading into the body frame
// and republishes it. Orientation readings never feed calibration.
func (p *Pipeline) HandleOrientation(r orientation.Reading) error {
	p.stats.OrientationIn++

	source := frameOr(p.cfg.OrientationFrame, r.FrameID)
	t, err := p.resolver.Resolve(source, p.cfg.BodyFrame, r.Stamp)
	if err != nil {
		p.stats.FrameUnavailable++
		p.log.Debug().Err(err).Str("source", source).Msg("orientation: transform not available, dropping")
		return err
	}

	out := r
	out.FrameID = p.cfg.BodyFrame
	if !r.Orientation.IsZero() {
		out.Orientation = t.ApplyRotation(r.Orientation)
	}
	out.OrientationCovariance = geom.RotateCovariance3(r.OrientationCovariance, t.Rotation)
	out.AngularVelocity = t.Rotation.Rotate(r.AngularVelocity)
	out.AngularVelocityCovariance = geom.RotateCovariance3(r.AngularVelocityCovariance, t.Rotation)
	out.LinearAcceleration = t.Rotation.Rotate(r.LinearAcceleration)
	out.LinearAccelerationCovariance = geom.RotateCovariance3(r.LinearAccelerationCovariance, t.Rotation)

	if err := p.pub.PublishOrientation(out); err != nil {
		p.stats.PublishErrors++
		p.log.Error().Err(err).Msg("orientation: publish failed")
		return nil
	}
	p.stats.OrientationOut++
	return nil
}

// HandleOdometry processes one point-cloud odometry reading.
func (p *Pipeline) HandleOdometry(o odometry.Odometry) error {
	p.stats.OdometryIn++

	source := frameOr(p.cfg.OdometryFrame, o.ChildFrameID)
	t, err := p.resolver.Resolve(source, p.cfg.BodyFrame, o.Stamp)
	if err != nil {
		p.stats.FrameUnavailable++
		p.log.Debug().Err(err).Str("source", source).Msg("odometry: transform not available, dropping")
		return err
	}
	body := o.Transformed(t)
	body.ChildFrameID = p.cfg.BodyFrame

	if p.result != nil {
		body = p.correct(body)
	}

	if err := p.pub.PublishOdometry(body); err != nil {
		p.stats.PublishErrors++
		p.log.Error().Err(err).Msg("odometry: publish failed")
		return nil
	}
	p.stats.OdometryOut++
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/frame_alignment/internal/align"
	"github.com/relabs-tech/frame_alignment/internal/calibration"
	"github.com/relabs-tech/frame_alignment/internal/config"
	"github.com/relabs-tech/frame_alignment/internal/filter"
	"github.com/relabs-tech/frame_alignment/internal/logging"
	"github.com/relabs-tech/frame_alignment/internal/odometry"
	"github.com/relabs-tech/frame_alignment/internal/orientation"
	"github.com/relabs-tech/frame_alignment/internal/tf"
)

type eventKind int

const (
	positionEvent eventKind = iota
	orientationEvent
	odometryEvent
)

// event is one reading waiting for the alignment loop.
type event struct {
	kind        eventKind
	odometry    odometry.Odometry
	orientation orientation.Reading
}

// handler is what the loop drives; *align.Pipeline implements it.
type handler interface {
	HandlePosition(o odometry.Odometry) error
	HandleOrientation(r orientation.Reading) error
	HandleOdometry(o odometry.Odometry) error
}

// queue hands readings from the transport callbacks to the loop. A full
// queue drops the reading instead of stalling the MQTT client.
type queue struct {
	ch      chan event
	dropped atomic.Int64
}

func newQueue(size int) *queue {
	if size <= 0 {
		size = 1
	}
	return &queue{ch: make(chan event, size)}
}

func (q *queue) push(ev event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// mqttPublisher implements align.Publisher on top of an MQTT client.
type mqttPublisher struct {
	client     publisher
	cfg        *config.Config
	calibrated bool
	now        func() time.Time
}

func (p *mqttPublisher) PublishCalibration(res calibration.Result) error {
	if p.calibrated {
		return errors.New("calibration already published")
	}
	msg := newCalibrationMessage(res, p.cfg.WorldFrame, p.now())
	if err := publishJSON(p.client, p.cfg.TopicCalibration, true, msg); err != nil {
		return err
	}
	p.calibrated = true
	return nil
}

func (p *mqttPublisher) PublishOrientation(r orientation.Reading) error {
	return publishJSON(p.client, p.cfg.TopicIMUAligned, false, r)
}

func (p *mqttPublisher) PublishPosition(o odometry.Odometry) error {
	return publishJSON(p.client, p.cfg.TopicGPSAligned, false, o)
}

func (p *mqttPublisher) PublishOdometry(o odometry.Odometry) error {
	return publishJSON(p.client, p.cfg.TopicLidarAligned, false, o)
}

// pipelineConfig maps the file configuration onto the pipeline's.
func pipelineConfig(cfg *config.Config) align.Config {
	return align.Config{
		BodyFrame:          cfg.BodyFrame,
		PositionFrame:      cfg.GPSFrame,
		OrientationFrame:   cfg.IMUFrame,
		OdometryFrame:      cfg.LidarFrame,
		SampleThreshold:    cfg.SampleThreshold,
		MaxFixDisplacement: cfg.MaxFixDisplacement,
		HeadingThreshold:   cfg.HeadingThreshold,
		Remapper: filter.Remapper{
			SmallBand: cfg.CovarianceSmallBand,
			LargeBand: cfg.CovarianceLargeBand,
			Tolerance: cfg.CovarianceBandTolerance,
		},
	}
}

// dispatch runs one event through h.
func dispatch(h handler, ev event) error {
	switch ev.kind {
	case positionEvent:
		return h.HandlePosition(ev.odometry)
	case orientationEvent:
		return h.HandleOrientation(ev.orientation)
	case odometryEvent:
		return h.HandleOdometry(ev.odometry)
	default:
		return fmt.Errorf("unknown event kind %d", ev.kind)
	}
}

// eventLoop drains q until ctx is cancelled. tick, when non-nil, is called
// on every status tick from the same goroutine.
func eventLoop(ctx context.Context, q *queue, h handler, status <-chan time.Time, tick func(), log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.ch:
			if err := dispatch(h, ev); err != nil {
				switch {
				case errors.Is(err, tf.ErrFrameUnavailable), errors.Is(err, align.ErrOutlierRejected):
					// routine, logged by the pipeline
				default:
					log.Warn().Err(err).Msg("reading dropped")
				}
			}
		case <-status:
			if tick != nil {
				tick()
			}
		}
	}
}

// RunFrameCalibration runs the calibration node: it subscribes to the raw
// sensor and transform topics, aligns every reading to the body frame and
// publishes the aligned streams and, once, the calibration result.
func RunFrameCalibration() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("frame_calibration: configuration not initialised")
	}
	root := logging.New(os.Stderr, cfg.LogLevel)
	log := logging.Component(root, "frame_calibration")

	frames := tf.NewDirectory(cfg.TFBufferDuration, cfg.TFTolerance)

	client, err := connectMQTT(cfg.BrokerURL(), cfg.MQTTClientIDCalibration, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	pub := &mqttPublisher{client: client, cfg: cfg, now: time.Now}
	pipeline, err := align.New(pipelineConfig(cfg), frames, pub, root)
	if err != nil {
		return err
	}

	q := newQueue(cfg.EventQueueSize)
	tfLog := logging.Component(root, "tf")

	// Transforms go straight into the directory; it is safe for concurrent use.
	addTF := func(static bool) func(tf.Message) {
		return func(m tf.Message) {
			for i := range m.Transforms {
				m.Transforms[i].Static = m.Transforms[i].Static || static
			}
			if err := frames.AddMessage(m); err != nil {
				tfLog.Warn().Err(err).Msg("transform rejected")
			}
		}
	}
	if cfg.TopicTF != "" {
		if err := subscribeJSON(client, cfg.TopicTF, tfLog, addTF(false)); err != nil {
			return err
		}
	}
	if cfg.TopicTFStatic != "" {
		if err := subscribeJSON(client, cfg.TopicTFStatic, tfLog, addTF(true)); err != nil {
			return err
		}
	}

	enqueue := func(name string) func(event) {
		return func(ev event) {
			if !q.push(ev) {
				log.Warn().Str("stream", name).Msg("event queue full, reading dropped")
			}
		}
	}
	gpsIn, imuIn, lidarIn := enqueue("gps"), enqueue("imu"), enqueue("lidar")

	if err := subscribeJSON(client, cfg.TopicGPSOdom, log, func(o odometry.Odometry) {
		gpsIn(event{kind: positionEvent, odometry: o})
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.TopicIMU, log, func(r orientation.Reading) {
		imuIn(event{kind: orientationEvent, orientation: r})
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.TopicLidarOdom, log, func(o odometry.Odometry) {
		lidarIn(event{kind: odometryEvent, odometry: o})
	}); err != nil {
		return err
	}

	// Wait for Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(cfg.StatusInterval) * time.Millisecond)
	defer ticker.Stop()

	publishStatus := func() {
		if cfg.TopicStatus == "" {
			return
		}
		status := StatusMessage{
			Stamp:    time.Now(),
			Progress: pipeline.Progress(),
			LastFix:  pipeline.FixState(),
			Stats:    pipeline.Stats(),
			Dropped:  int(q.dropped.Load()),
			Frames:   frames.Frames(),
		}
		if res, ok := pipeline.Calibration(); ok {
			status.Calibration = &res
		}
		if err := publishJSON(client, cfg.TopicStatus, true, status); err != nil {
			log.Warn().Err(err).Msg("status publish failed")
		}
	}

	log.Info().
		Str("body_frame", cfg.BodyFrame).
		Int("sample_threshold", cfg.SampleThreshold).
		Msg("frame calibration running")
	eventLoop(ctx, q, pipeline, ticker.C, publishStatus, log)

	log.Info().Msg("shutting down")
	return nil
}

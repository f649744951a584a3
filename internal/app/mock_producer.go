// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/frame_alignment/internal/config"
	"github.com/relabs-tech/frame_alignment/internal/geom"
	"github.com/relabs-tech/frame_alignment/internal/gps"
	"github.com/relabs-tech/frame_alignment/internal/logging"
	"github.com/relabs-tech/frame_alignment/internal/odometry"
	"github.com/relabs-tech/frame_alignment/internal/orientation"
	"github.com/relabs-tech/frame_alignment/internal/tf"
)

// mockVehicle drives a straight line at constant speed from a fixed start,
// so a calibration run against it has a known answer.
type mockVehicle struct {
	cfg     *config.Config
	start   geom.Vec2
	heading float64 // radians, counter-clockwise from x
	speed   float64 // m/s
	noise   float64 // position noise standard deviation, metres
	rng     *rand.Rand
	imu     orientation.Source
	began   time.Time
}

func newMockVehicle(cfg *config.Config, seed int64, began time.Time) *mockVehicle {
	return &mockVehicle{
		cfg:     cfg,
		start:   geom.Vec2{X: 500000, Y: 4000000},
		heading: 0.6,
		speed:   2,
		noise:   0.05,
		rng:     rand.New(rand.NewSource(seed)),
		imu:     orientation.NewMockSource(cfg.IMUFrame),
		began:   began,
	}
}

// mountings are the sensor placements on the body.
func (v *mockVehicle) mountings(stamp time.Time) tf.Message {
	mount := func(child string, t geom.Transform) tf.StampedTransform {
		return tf.StampedTransform{Stamp: stamp, Parent: v.cfg.BodyFrame, Child: child, Transform: t, Static: true}
	}
	return tf.Message{Transforms: []tf.StampedTransform{
		mount(v.cfg.GPSFrame, geom.Transform{Translation: geom.Vec3{X: -0.3, Z: 1.2}, Rotation: geom.IdentityQuaternion()}),
		mount(v.cfg.IMUFrame, geom.Transform{Translation: geom.Vec3{Z: 0.4}, Rotation: geom.QuaternionFromRPY(0, 0, math.Pi)}),
		mount(v.cfg.LidarFrame, geom.Transform{Translation: geom.Vec3{X: 0.8, Z: 1.5}, Rotation: geom.QuaternionFromYaw(-math.Pi / 2)}),
	}}
}

// position returns the noisy GPS odometry at t.
func (v *mockVehicle) position(t time.Time) odometry.Odometry {
	d := v.speed * t.Sub(v.began).Seconds()
	o := odometry.Odometry{
		Stamp:        t,
		FrameID:      v.cfg.WorldFrame,
		ChildFrameID: v.cfg.GPSFrame,
		Pose: odometry.Pose{
			Position: geom.Vec3{
				X: v.start.X + d*math.Cos(v.heading) + v.rng.NormFloat64()*v.noise,
				Y: v.start.Y + d*math.Sin(v.heading) + v.rng.NormFloat64()*v.noise,
			},
			Orientation: geom.IdentityQuaternion(),
		},
		Twist: odometry.Twist{Linear: geom.Vec3{X: v.speed * math.Cos(v.heading), Y: v.speed * math.Sin(v.heading)}},
	}
	variance := gps.DefaultVariances().Differential
	o.Covariance[odometry.VarX] = variance
	o.Covariance[odometry.VarY] = variance
	o.Covariance[odometry.VarZ] = variance
	return o
}

// odometry returns the point-cloud odometry at t, expressed in the lidar's
// own start frame.
func (v *mockVehicle) odometry(t time.Time) odometry.Odometry {
	d := v.speed * t.Sub(v.began).Seconds()
	return odometry.Odometry{
		Stamp:        t,
		FrameID:      "odom",
		ChildFrameID: v.cfg.LidarFrame,
		Pose: odometry.Pose{
			Position:    geom.Vec3{X: d},
			Orientation: geom.IdentityQuaternion(),
		},
		Twist: odometry.Twist{Linear: geom.Vec3{X: v.speed}},
	}
}

// RunMockProducer publishes synthetic GPS, IMU and lidar streams plus the
// static sensor mountings, for bench runs without hardware.
func RunMockProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("mock producer: configuration not initialised")
	}
	log := logging.Component(logging.New(os.Stderr, cfg.LogLevel), "mock")

	client, err := connectMQTT(cfg.BrokerURL(), cfg.MQTTClientIDProducer, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	v := newMockVehicle(cfg, time.Now().UnixNano(), time.Now())
	if err := publishJSON(client, cfg.TopicTFStatic, true, v.mountings(time.Now())); err != nil {
		return err
	}
	log.Info().Str("topic", cfg.TopicTFStatic).Msg("published sensor mountings")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.ProducerInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			log.Info().Msg("shutting down")
			return nil
		case t := <-ticker.C:
			v.tick(client, t, log)
		}
	}
}

func (v *mockVehicle) tick(pub publisher, t time.Time, log zerolog.Logger) {
	if err := publishJSON(pub, v.cfg.TopicGPSOdom, false, v.position(t)); err != nil {
		log.Warn().Err(err).Msg("publish error (gps)")
	}
	if r, err := v.imu.Next(); err != nil {
		log.Warn().Err(err).Msg("error from mock orientation source")
	} else if err := publishJSON(pub, v.cfg.TopicIMU, false, r); err != nil {
		log.Warn().Err(err).Msg("publish error (imu)")
	}
	if err := publishJSON(pub, v.cfg.TopicLidarOdom, false, v.odometry(t)); err != nil {
		log.Warn().Err(err).Msg("publish error (lidar)")
	}
}

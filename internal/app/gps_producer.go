package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/frame_alignment/internal/config"
	"github.com/relabs-tech/frame_alignment/internal/gps"
	"github.com/relabs-tech/frame_alignment/internal/logging"
)

// gpsStream turns NMEA lines into projected odometry messages.
type gpsStream struct {
	assembler  *gps.Assembler
	projector  *gps.Projector
	variances  gps.Variances
	worldFrame string
	gpsFrame   string
	topic      string
	log        zerolog.Logger
}

// run reads r until it fails and publishes one message per complete fix.
func (s *gpsStream) run(r io.Reader, pub publisher) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("GPS read: %w", err)
		}

		sentence, err := gps.ParseLine(line)
		if err != nil {
			// noisy GPS or partial sentences
			s.log.Trace().Err(err).Msg("NMEA parse error")
			continue
		}
		if sentence == nil {
			continue
		}

		fix, ok := s.assembler.Update(sentence)
		if !ok {
			continue
		}
		o, ok := s.projector.Odometry(fix, s.variances, s.worldFrame, s.gpsFrame)
		if !ok {
			s.log.Debug().Str("quality", fix.FixQuality).Msg("no position solution, skipping fix")
			continue
		}
		if err := publishJSON(pub, s.topic, false, o); err != nil {
			s.log.Warn().Err(err).Msg("GPS publish error")
			continue
		}
		s.log.Debug().
			Float64("lat", fix.Latitude).Float64("lon", fix.Longitude).
			Float64("x", o.Pose.Position.X).Float64("y", o.Pose.Position.Y).
			Str("quality", fix.FixQuality).
			Msg("published GPS fix")
	}
}

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes projected fixes as odometry on the raw GPS topic.
func RunGPSProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("gps: configuration not initialised")
	}
	log := logging.Component(logging.New(os.Stderr, cfg.LogLevel), "gps")

	projector, err := gps.NewProjector(cfg.GPSProjectionEPSG)
	if err != nil {
		return err
	}

	// ---- 1) Connect to MQTT broker ----
	client, err := connectMQTT(cfg.BrokerURL(), cfg.MQTTClientIDGPS, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open %s: %w", serialOpts.PortName, err)
	}
	defer port.Close()
	log.Info().
		Str("port", serialOpts.PortName).
		Uint("baud", serialOpts.BaudRate).
		Int("epsg", projector.EPSG()).
		Msg("GPS serial port opened")

	stream := &gpsStream{
		assembler:  gps.NewAssembler(),
		projector:  projector,
		variances:  gps.DefaultVariances(),
		worldFrame: cfg.WorldFrame,
		gpsFrame:   cfg.GPSFrame,
		topic:      cfg.TopicGPSOdom,
		log:        log,
	}
	return stream.run(port, client)
}

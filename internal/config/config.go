package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker              string
	MQTTClientIDCalibration string
	MQTTClientIDGPS         string
	MQTTClientIDProducer    string
	MQTTClientIDConsole     string
	MQTTClientIDWeb         string

	// Input topics
	TopicGPSOdom   string
	TopicIMU       string
	TopicLidarOdom string
	TopicTF        string
	TopicTFStatic  string

	// Output topics
	TopicCalibration  string
	TopicGPSAligned   string
	TopicIMUAligned   string
	TopicLidarAligned string
	TopicStatus       string

	// Frames
	BodyFrame  string
	WorldFrame string
	GPSFrame   string
	IMUFrame   string
	LidarFrame string

	// Calibration
	SampleThreshold    int
	MaxFixDisplacement float64 // metres
	HeadingThreshold   float64 // radians

	// Covariance bands
	CovarianceSmallBand     []float64
	CovarianceLargeBand     float64
	CovarianceBandTolerance float64

	// Transform buffer
	TFBufferDuration time.Duration
	TFTolerance      time.Duration

	// Pipeline
	EventQueueSize int
	StatusInterval int // milliseconds

	// GPS
	GPSSerialPort     string
	GPSBaudRate       int
	GPSProjectionEPSG int

	// Timing
	ProducerInterval   int // milliseconds
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Logging
	LogLevel string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated with every default value. MQTT_BROKER
// has no default and must come from the file.
func Default() *Config {
	return &Config{
		MQTTClientIDCalibration: "frame-calibration",
		MQTTClientIDGPS:         "frame-gps-producer",
		MQTTClientIDProducer:    "frame-mock-producer",
		MQTTClientIDConsole:     "frame-console",
		MQTTClientIDWeb:         "frame-web",

		TopicGPSOdom:   "gps/odom",
		TopicIMU:       "imu/data",
		TopicLidarOdom: "lidar/odom",
		TopicTF:        "tf",
		TopicTFStatic:  "tf_static",

		TopicCalibration:  "frame_calibration/calibration",
		TopicGPSAligned:   "frame_calibration/gps",
		TopicIMUAligned:   "frame_calibration/imu",
		TopicLidarAligned: "frame_calibration/lidar",
		TopicStatus:       "frame_calibration/status",

		BodyFrame:  "base_link",
		WorldFrame: "map",
		GPSFrame:   "gps",
		IMUFrame:   "imu",
		LidarFrame: "lidar",

		SampleThreshold:    100,
		MaxFixDisplacement: 5.0,
		HeadingThreshold:   0.35,

		CovarianceSmallBand:     []float64{0.0049, 1},
		CovarianceLargeBand:     25,
		CovarianceBandTolerance: 1e-6,

		TFBufferDuration: 10 * time.Second,
		TFTolerance:      50 * time.Millisecond,

		EventQueueSize: 256,
		StatusInterval: 1000,

		GPSSerialPort:     "/dev/serial0",
		GPSBaudRate:       9600,
		GPSProjectionEPSG: 3857,

		ProducerInterval:   100,
		ConsoleLogInterval: 1000,

		WebServerPort: 8080,
		LogLevel:      "info",
	}
}

// Load reads the configuration file and returns a Config struct.
//
// The file is a list of KEY=VALUE lines; blank lines and lines starting with
// '#' are ignored. An environment variable with the same name as a key that
// appears in the file overrides the file's value.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("env")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		value := strings.TrimSpace(v.GetString(key))
		if err := cfg.setValue(name, value); err != nil {
			return nil, fmt.Errorf("config %s: %w", name, err)
		}
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be finite, got %q", key, value)
	}
	return f, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CALIBRATION":
		c.MQTTClientIDCalibration = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_GPS_ODOM":
		c.TopicGPSOdom = value
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_LIDAR_ODOM":
		c.TopicLidarOdom = value
	case "TOPIC_TF":
		c.TopicTF = value
	case "TOPIC_TF_STATIC":
		c.TopicTFStatic = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_GPS_ALIGNED":
		c.TopicGPSAligned = value
	case "TOPIC_IMU_ALIGNED":
		c.TopicIMUAligned = value
	case "TOPIC_LIDAR_ALIGNED":
		c.TopicLidarAligned = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// Frames
	case "BODY_FRAME":
		c.BodyFrame = value
	case "WORLD_FRAME":
		c.WorldFrame = value
	case "GPS_FRAME":
		c.GPSFrame = value
	case "IMU_FRAME":
		c.IMUFrame = value
	case "LIDAR_FRAME":
		c.LidarFrame = value

	// Calibration
	case "SAMPLE_THRESHOLD":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.SampleThreshold = n
	case "MAX_FIX_DISPLACEMENT":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.MaxFixDisplacement = f
	case "HEADING_THRESHOLD":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.HeadingThreshold = f

	// Covariance bands
	case "COVARIANCE_SMALL_BAND":
		var band []float64
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := parseFloat(key, part)
			if err != nil {
				return err
			}
			band = append(band, f)
		}
		c.CovarianceSmallBand = band
	case "COVARIANCE_LARGE_BAND":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.CovarianceLargeBand = f
	case "COVARIANCE_BAND_TOLERANCE":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.CovarianceBandTolerance = f

	// Transform buffer
	case "TF_BUFFER_DURATION":
		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		c.TFBufferDuration = d
	case "TF_TOLERANCE":
		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		c.TFTolerance = d

	// Pipeline
	case "EVENT_QUEUE_SIZE":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.EventQueueSize = n
	case "STATUS_INTERVAL":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.StatusInterval = n

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.GPSBaudRate = n
	case "GPS_PROJECTION_EPSG":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.GPSProjectionEPSG = n

	// Timing
	case "PRODUCER_INTERVAL":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.ProducerInterval = n
	case "CONSOLE_LOG_INTERVAL":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.ConsoleLogInterval = n

	// Web Server
	case "WEB_SERVER_PORT":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.WebServerPort = n

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.BodyFrame == "" {
		return fmt.Errorf("BODY_FRAME is required")
	}
	if c.MaxFixDisplacement <= 0 {
		return fmt.Errorf("MAX_FIX_DISPLACEMENT must be positive")
	}
	if c.HeadingThreshold <= 0 || c.HeadingThreshold > math.Pi {
		return fmt.Errorf("HEADING_THRESHOLD must be in (0, pi] radians")
	}
	if len(c.CovarianceSmallBand) == 0 {
		return fmt.Errorf("COVARIANCE_SMALL_BAND needs at least one value")
	}
	if c.CovarianceBandTolerance < 0 {
		return fmt.Errorf("COVARIANCE_BAND_TOLERANCE must not be negative")
	}
	for name, topic := range map[string]string{
		"TOPIC_GPS_ODOM":    c.TopicGPSOdom,
		"TOPIC_IMU":         c.TopicIMU,
		"TOPIC_LIDAR_ODOM":  c.TopicLidarOdom,
		"TOPIC_CALIBRATION": c.TopicCalibration,
	} {
		if topic == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

// BrokerURL returns the broker address with a scheme, defaulting to tcp.
func (c *Config) BrokerURL() string {
	if strings.Contains(c.MQTTBroker, "://") {
		return c.MQTTBroker
	}
	return "tcp://" + c.MQTTBroker
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# broker only\nMQTT_BROKER=localhost:1883\n"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "tcp://localhost:1883", cfg.BrokerURL())
	assert.Equal(t, "base_link", cfg.BodyFrame)
	assert.Equal(t, 100, cfg.SampleThreshold)
	assert.Equal(t, []float64{0.0049, 1}, cfg.CovarianceSmallBand)
	assert.Equal(t, 25.0, cfg.CovarianceLargeBand)
	assert.Equal(t, 10*time.Second, cfg.TFBufferDuration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
MQTT_BROKER=tcp://broker:1883
BODY_FRAME=chassis
GPS_FRAME=gnss_antenna
SAMPLE_THRESHOLD=20
MAX_FIX_DISPLACEMENT=2.5
HEADING_THRESHOLD=0.2
COVARIANCE_SMALL_BAND=0.01, 2
COVARIANCE_LARGE_BAND=16
TF_TOLERANCE=20ms
GPS_PROJECTION_EPSG=32633
`))
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.BrokerURL())
	assert.Equal(t, "chassis", cfg.BodyFrame)
	assert.Equal(t, "gnss_antenna", cfg.GPSFrame)
	assert.Equal(t, 20, cfg.SampleThreshold)
	assert.Equal(t, 2.5, cfg.MaxFixDisplacement)
	assert.Equal(t, 0.2, cfg.HeadingThreshold)
	assert.Equal(t, []float64{0.01, 2}, cfg.CovarianceSmallBand)
	assert.Equal(t, 16.0, cfg.CovarianceLargeBand)
	assert.Equal(t, 20*time.Millisecond, cfg.TFTolerance)
	assert.Equal(t, 32633, cfg.GPSProjectionEPSG)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing broker", "BODY_FRAME=base_link\n", "MQTT_BROKER is required"},
		{"unknown key", "MQTT_BROKER=x\nIMU_LEFT_SPI_DEVICE=/dev/spidev0.0\n", "unknown config key"},
		{"bad int", "MQTT_BROKER=x\nSAMPLE_THRESHOLD=lots\n", "invalid SAMPLE_THRESHOLD"},
		{"zero threshold", "MQTT_BROKER=x\nSAMPLE_THRESHOLD=0\n", "must be positive"},
		{"bad float", "MQTT_BROKER=x\nMAX_FIX_DISPLACEMENT=far\n", "invalid MAX_FIX_DISPLACEMENT"},
		{"negative displacement", "MQTT_BROKER=x\nMAX_FIX_DISPLACEMENT=-1\n", "MAX_FIX_DISPLACEMENT must be positive"},
		{"heading too wide", "MQTT_BROKER=x\nHEADING_THRESHOLD=4\n", "HEADING_THRESHOLD"},
		{"bad duration", "MQTT_BROKER=x\nTF_TOLERANCE=soon\n", "invalid TF_TOLERANCE"},
		{"bad band", "MQTT_BROKER=x\nCOVARIANCE_SMALL_BAND=0.1,abc\n", "invalid COVARIANCE_SMALL_BAND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("BODY_FRAME", "from_env")
	cfg, err := Load(writeConfig(t, "MQTT_BROKER=x\nBODY_FRAME=from_file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.BodyFrame)
}

func TestGlobal(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER=global:1883\n")
	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, "global:1883", Get().MQTTBroker)

	// Subsequent calls keep the first configuration.
	require.NoError(t, InitGlobal(writeConfig(t, "MQTT_BROKER=other\n")))
	assert.Equal(t, "global:1883", Get().MQTTBroker)
}

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/frame_alignment/internal/config"
	"github.com/relabs-tech/frame_alignment/internal/logging"
)

// newWebMux wires the JSON API and the live feed.
func newWebMux(feed *Feed, staticDir string, log zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	latest := func(kind string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			m, ok := feed.Latest(kind)
			if !ok {
				http.Error(w, "no data yet", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(m.Data)
		}
	}

	// JSON API endpoints
	mux.HandleFunc("/api/calibration", latest("calibration"))
	mux.HandleFunc("/api/status", latest("status"))
	mux.HandleFunc("/api/aligned", func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]json.RawMessage)
		for _, kind := range []string{"gps", "imu", "lidar"} {
			if m, ok := feed.Latest(kind); ok {
				out[kind] = m.Data
			}
		}
		if len(out) == 0 {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Warn().Err(err).Msg("json encode error")
		}
	})

	// Live feed
	mux.Handle("/ws/aligned", feed)

	// Static files from ./web as the root
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// feedTopics maps every topic the web view follows onto its feed kind.
func feedTopics(cfg *config.Config) map[string]string {
	topics := map[string]string{
		cfg.TopicCalibration:  "calibration",
		cfg.TopicGPSAligned:   "gps",
		cfg.TopicIMUAligned:   "imu",
		cfg.TopicLidarAligned: "lidar",
	}
	if cfg.TopicStatus != "" {
		topics[cfg.TopicStatus] = "status"
	}
	return topics
}

// RunWeb serves the calibration result and the aligned streams over HTTP
// and a websocket live feed.
func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("web: configuration not initialised")
	}
	log := logging.Component(logging.New(os.Stderr, cfg.LogLevel), "web")
	feed := NewFeed(log)

	client, err := connectMQTT(cfg.BrokerURL(), cfg.MQTTClientIDWeb, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	for topic, kind := range feedTopics(cfg) {
		kind := kind // per-iteration copy (go directive is below 1.22)
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := feed.Publish(kind, msg.Topic(), msg.Payload()); err != nil {
				log.Warn().Err(err).Str("topic", msg.Topic()).Msg("payload dropped")
			}
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("MQTT subscribe (%s): %w", topic, token.Error())
		}
		log.Info().Str("topic", topic).Msg("subscribed")
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Info().Str("addr", addr).Msg("web server listening")
	return http.ListenAndServe(addr, newWebMux(feed, "web", log))
}

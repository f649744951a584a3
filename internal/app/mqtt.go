// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// publisher is the part of mqtt.Client the producers need.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// uniqueClientID suffixes the configured client id so several instances can
// share a broker without kicking each other off.
func uniqueClientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// connectMQTT connects to the broker and logs the outcome.
func connectMQTT(broker, clientID string, log zerolog.Logger) (mqtt.Client, error) {
	id := uniqueClientID(clientID)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}
	log.Info().Str("broker", broker).Str("client_id", id).Msg("connected to MQTT broker")
	return client, nil
}

// publishJSON marshals v and publishes it with QoS 0.
func publishJSON(pub publisher, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	token := pub.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, token.Error())
	}
	return nil
}

// subscribeJSON subscribes to topic and hands every payload that decodes
// as T to handle. Payloads that do not decode are logged and dropped.
func subscribeJSON[T any](client mqtt.Client, topic string, log zerolog.Logger, handle func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("payload unmarshal error")
			return
		}
		handle(v)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe (%s): %w", topic, token.Error())
	}
	log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

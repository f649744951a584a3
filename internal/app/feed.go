// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const feedWriteTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Kinds of messages carried by the live feed, in snapshot order.
var feedKinds = []string{"calibration", "status", "gps", "imu", "lidar"}

// FeedMessage is one update pushed to websocket clients.
type FeedMessage struct {
	Type     string          `json:"type"` // calibration, status, gps, imu, lidar
	Topic    string          `json:"topic"`
	Received time.Time       `json:"received"`
	Data     json.RawMessage `json:"data"`
}

// feedRequest is what a client may send; "snapshot" replays the latest
// message of every kind.
type feedRequest struct {
	Action string `json:"action"`
}

type feedSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *feedSession) send(m FeedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return s.conn.WriteJSON(m)
}

// Feed keeps the latest aligned outputs and fans them out to websocket
// clients.
type Feed struct {
	mu       sync.Mutex
	sessions map[*feedSession]struct{}
	latest   map[string]FeedMessage
	log      zerolog.Logger
	now      func() time.Time
}

// NewFeed returns an empty feed.
func NewFeed(log zerolog.Logger) *Feed {
	return &Feed{
		sessions: make(map[*feedSession]struct{}),
		latest:   make(map[string]FeedMessage),
		log:      log,
		now:      time.Now,
	}
}

// Publish records payload as the latest message of kind and sends it to
// every connected client. Clients that cannot keep up are disconnected.
func (f *Feed) Publish(kind, topic string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("feed: %s payload is not JSON", kind)
	}
	m := FeedMessage{
		Type:     kind,
		Topic:    topic,
		Received: f.now(),
		Data:     json.RawMessage(append([]byte(nil), payload...)),
	}

	f.mu.Lock()
	f.latest[kind] = m
	sessions := make([]*feedSession, 0, len(f.sessions))
	for s := range f.sessions {
		sessions = append(sessions, s)
	}
	f.mu.Unlock()

	// writes happen outside f.mu; each session serialises its own
	for _, s := range sessions {
		if err := s.send(m); err != nil {
			f.log.Debug().Err(err).Msg("websocket client dropped")
			s.conn.Close()
			f.mu.Lock()
			delete(f.sessions, s)
			f.mu.Unlock()
		}
	}
	return nil
}

// Latest returns the last message of kind.
func (f *Feed) Latest(kind string) (FeedMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.latest[kind]
	return m, ok
}

// Clients returns the number of connected websocket clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// sendSnapshot must be called with f.mu held.
func (f *Feed) sendSnapshot(s *feedSession) error {
	for _, kind := range feedKinds {
		if m, ok := f.latest[kind]; ok {
			if err := s.send(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// ServeHTTP upgrades the request to a websocket, replays the latest
// messages and then streams every update until the client goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	session := &feedSession{conn: conn}
	f.mu.Lock()
	f.sessions[session] = struct{}{}
	err = f.sendSnapshot(session)
	if err != nil {
		delete(f.sessions, session)
	}
	f.mu.Unlock()
	if err != nil {
		f.log.Debug().Err(err).Msg("websocket snapshot failed")
		return
	}

	defer func() {
		f.mu.Lock()
		delete(f.sessions, session)
		f.mu.Unlock()
	}()

	// Main message loop
	for {
		var req feedRequest
		if err := conn.ReadJSON(&req); err != nil {
			f.log.Debug().Err(err).Msg("websocket read error")
			return
		}
		switch req.Action {
		case "snapshot":
			f.mu.Lock()
			err := f.sendSnapshot(session)
			f.mu.Unlock()
			if err != nil {
				return
			}
		default:
			session.send(FeedMessage{
				Type: "error",
				Data: json.RawMessage(fmt.Sprintf("%q", "unknown action "+req.Action)),
			})
		}
	}
}

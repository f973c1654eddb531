// Package events publishes playback progress on NATS so other local tools
// can follow along with what the daemon is speaking.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eel-brah/kokorodoki/internal/config"
	"github.com/eel-brah/kokorodoki/internal/player"
	"github.com/eel-brah/kokorodoki/internal/protocol"
)

// Publisher broadcasts playback state over NATS. It implements
// player.Notifier; publish failures are logged, never surfaced to
// playback.
type Publisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

// Connect dials the configured NATS servers.
func Connect(cfg config.EventsConfig, log *slog.Logger) (*Publisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("kokorodoki"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return &Publisher{conn: conn, log: log.With(slog.String("component", "events"))}, nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Drain()
	p.conn.Close()
}

// Healthy reports whether the connection is up.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// PlaybackState implements player.Notifier.
func (p *Publisher) PlaybackState(st player.Status) {
	p.publish(protocol.SubjectPlaybackState, protocol.PlaybackState{
		Phase:     st.Phase,
		Cursor:    st.Cursor,
		Total:     st.Total,
		Voice:     st.Voice,
		Language:  st.Language,
		Speed:     st.Speed,
		Timestamp: time.Now().UTC(),
	})
}

// UtteranceStarted implements player.Notifier.
func (p *Publisher) UtteranceStarted(index int, text string) {
	p.publish(protocol.SubjectUtterance, protocol.UtteranceEvent{
		Index:     index,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Warn("event marshal failed", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("event publish failed", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

// Package mqtt publishes final conversation responses to an MQTT
// broker so satellite speakers can play them, with an availability
// topic for Home Assistant to track.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/voicebridge/internal/config"
)

// Response is the payload published for each completed exchange.
type Response struct {
	Text              string    `json:"text"`
	Speech            string    `json:"speech"`
	ContinueListening bool      `json:"continue_listening"`
	Timestamp         time.Time `json:"timestamp"`
}

// Announcer manages the MQTT connection and publishes responses.
type Announcer struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates an Announcer but does not connect. Call
// [Announcer.Start] to establish the connection.
func New(cfg config.MQTTConfig, logger *slog.Logger) *Announcer {
	return &Announcer{cfg: cfg, logger: logger}
}

// Start connects to the broker. autopaho reconnects in the background,
// so a broker outage at startup is a warning, not a failure. On every
// (re-)connect the availability topic is set to online; the will
// message flips it to offline if the process dies.
func (a *Announcer) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(a.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: a.cfg.Username,
		ConnectPassword: []byte(a.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   a.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			a.logger.Info("mqtt connected to broker", "broker", a.cfg.Broker)
			a.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			a.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "voicebridge-" + a.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	a.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		a.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes an offline availability message and disconnects.
func (a *Announcer) Stop(ctx context.Context) error {
	if a.cm == nil {
		return nil
	}
	a.publishAvailability(ctx, a.cm, "offline")
	return a.cm.Disconnect(ctx)
}

// Announce publishes one completed response. Failures are logged, not
// returned: a broker hiccup must never fail the conversation itself.
func (a *Announcer) Announce(ctx context.Context, resp Response) {
	if a.cm == nil {
		return
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		a.logger.Error("mqtt marshal response", "error", err)
		return
	}

	if _, err := a.cm.Publish(ctx, &paho.Publish{
		Topic:   a.responseTopic(),
		Payload: payload,
		QoS:     1,
	}); err != nil {
		a.logger.Warn("mqtt response publish failed", "error", err)
		return
	}
	a.logger.Debug("mqtt response published", "topic", a.responseTopic())
}

func (a *Announcer) baseTopic() string {
	return "voicebridge/" + a.cfg.DeviceName
}

func (a *Announcer) availabilityTopic() string {
	return a.baseTopic() + "/availability"
}

func (a *Announcer) responseTopic() string {
	return a.baseTopic() + "/response"
}

func (a *Announcer) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   a.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		a.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	}
}

package mq

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const disconnectQuiesceMS = 250

// mqttClient is the part of mqtt.Client the transport uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTTTransport publishes each message to "<topic>/<route>".
type MQTTTransport struct {
	client mqttClient
	topic  string
	qos    byte
}

// MQTTSettings configures NewMQTT.
type MQTTSettings struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
}

// NewMQTT starts connecting in the background and keeps reconnecting, so a
// broker that is down at startup only shows up as unhealthy.
func NewMQTT(cfg MQTTSettings) *MQTTTransport {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	client.Connect()
	return newMQTTTransport(client, cfg.Topic, cfg.QoS)
}

func newMQTTTransport(c mqttClient, topic string, qos byte) *MQTTTransport {
	return &MQTTTransport{client: c, topic: topic, qos: qos}
}

// Name implements Transport.
func (m *MQTTTransport) Name() string { return "mqtt" }

// Send publishes every message first, then waits for all acknowledgements.
func (m *MQTTTransport) Send(ctx context.Context, msgs []Message) error {
	tokens := make([]mqtt.Token, len(msgs))
	for i, msg := range msgs {
		tokens[i] = m.client.Publish(m.topic+"/"+msg.Route, m.qos, false, msg.Payload)
	}

	var (
		failed int
		first  error
	)
	for _, tok := range tokens {
		if err := wait(ctx, tok); err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if failed > 0 {
		return partialFailure(failed, len(msgs), fmt.Errorf("%w: %w", ErrPublishFailed, first))
	}
	return nil
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping reports whether the client currently holds an open connection.
func (m *MQTTTransport) Ping(context.Context) (bool, error) {
	if !m.client.IsConnectionOpen() {
		return false, ErrNotConnected
	}
	return true, nil
}

// Close disconnects after letting in-flight work finish.
func (m *MQTTTransport) Close() error {
	m.client.Disconnect(disconnectQuiesceMS)
	return nil
}

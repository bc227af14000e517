package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/zanrcon-project/zanrcon/internal/config"
	"github.com/zanrcon-project/zanrcon/internal/console"
	"github.com/zanrcon-project/zanrcon/internal/events"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

// MQTTMirror forwards the console stream and session lifecycle to an
// MQTT broker so dashboards can follow a server without holding their
// own RCON session.
type MQTTMirror struct {
	mu sync.Mutex

	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTMirror creates a new MQTT mirror from the loaded configuration.
func NewMQTTMirror(cfg *config.Config, eventBus *events.EventBus) (*MQTTMirror, error) {
	mqttCfg := cfg.GetMQTT()

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname": sysInfo.Hostname,
		"platform": sysInfo.Platform,
		"client":   "zanrcon",
	}

	mirror := &MQTTMirror{
		cfg:      mqttCfg,
		eventBus: eventBus,
		metadata: metadata,
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("zanrcon-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		if mqttCfg.CAFile != "" {
			pem, err := os.ReadFile(mqttCfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", mqttCfg.CAFile)
			}
			tlsConfig.RootCAs = pool
		}

		// mTLS: load client certificate
		if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	mirror.client = mqtt.NewClient(opts)

	return mirror, nil
}

// Start connects to the MQTT broker, mirrors events until the context
// is cancelled, then announces shutdown and disconnects.
func (m *MQTTMirror) Start(ctx context.Context) error {
	log.Info().
		Str("broker", m.cfg.BrokerURL).
		Int("port", m.cfg.Port).
		Msg("connecting to MQTT broker")

	token := m.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	m.subscribeEvents()

	<-ctx.Done()

	m.PublishShutdown()
	m.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// subscribeEvents registers event handlers for MQTT publishing.
func (m *MQTTMirror) subscribeEvents() {
	m.eventBus.Subscribe(events.EventConsoleOutput, "mqtt.console", m.onConsoleOutput)
	m.eventBus.Subscribe(events.EventCommandSent, "mqtt.commands", m.onCommandSent)
	m.eventBus.Subscribe(events.EventSessionState, "mqtt.state", m.onSessionState)
	m.eventBus.Subscribe(events.EventServerUpdate, "mqtt.scoreboard", m.onServerUpdate)
}

// topic builds "<prefix>/<server>/<suffix>".
func (m *MQTTMirror) topic(server, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", m.cfg.TopicPrefix, server, suffix)
}

// publish sends a JSON message to an MQTT topic.
func (m *MQTTMirror) publish(topic string, payload interface{}) {
	if !m.client.IsConnected() {
		return
	}

	msg := m.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := m.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (m *MQTTMirror) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})

	for k, v := range m.metadata {
		msg[k] = v
	}

	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

// Event handlers

func (m *MQTTMirror) onConsoleOutput(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ConsoleOutputPayload)
	if !ok {
		return nil
	}
	// Color escapes are a terminal concern; the mirror carries clean text.
	payload.Text = console.StripColors(payload.Text)
	m.publish(m.topic(payload.Server, "console"), payload)
	return nil
}

func (m *MQTTMirror) onCommandSent(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommandSentPayload)
	if !ok {
		return nil
	}
	m.publish(m.topic(payload.Server, "commands"), payload)
	return nil
}

func (m *MQTTMirror) onSessionState(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionStatePayload)
	if !ok {
		return nil
	}
	m.publish(m.topic(payload.Server, "state"), payload)
	return nil
}

func (m *MQTTMirror) onServerUpdate(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ServerUpdatePayload)
	if !ok {
		return nil
	}
	m.publish(m.topic(payload.Server, "scoreboard"), payload)
	return nil
}

// PublishShutdown announces the client going away.
func (m *MQTTMirror) PublishShutdown() {
	m.publish(fmt.Sprintf("%s/status", m.cfg.TopicPrefix), map[string]interface{}{
		"event":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

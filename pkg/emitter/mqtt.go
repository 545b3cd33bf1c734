// Package emitter publishes session samples to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-pupil/pkg/session"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("emitter: mqtt not connected")

// Config holds broker settings.
type Config struct {
	Broker         string // e.g. tcp://localhost:1883
	ClientID       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	QueueSize      int
}

// DefaultConfig returns a local broker config.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       "go-pupil",
		TopicPrefix:    "pupil",
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
		QueueSize:      256,
	}
}

// MQTTEmitter publishes samples to <prefix>/<session_id>/samples. It is a
// session.SampleSink: OnSample queues and a background worker publishes,
// so a slow broker never stalls a tracking pass.
type MQTTEmitter struct {
	cfg    Config
	logger *slog.Logger
	Client mqtt.Client // Exported for tests and control plane

	queue chan session.Sample
	done  chan struct{}
	start sync.Once

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	dropped   uint64
	connected bool
	closed    bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg Config, logger *slog.Logger) *MQTTEmitter {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger.With("component", "mqtt", "broker", cfg.Broker),
		queue:     make(chan session.Sample, cfg.QueueSize),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established", "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	e.Client = mqtt.NewClient(opts)
	e.logger.Info("connecting to mqtt broker")

	token := e.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(e.cfg.ConnectTimeout):
		return fmt.Errorf("emitter: mqtt connection timeout after %v", e.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Topic returns the sample topic for a session.
func (e *MQTTEmitter) Topic(sessionID string) string {
	return fmt.Sprintf("%s/%s/samples", e.cfg.TopicPrefix, sessionID)
}

// Publish sends one sample and waits for the broker to accept it.
func (e *MQTTEmitter) Publish(s session.Sample) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	topic := e.Topic(s.SessionID)
	payload, err := json.Marshal(s)
	if err != nil {
		e.countError()
		return fmt.Errorf("emitter: marshal sample: %w", err)
	}

	token := e.Client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(e.cfg.PublishTimeout) {
		e.countError()
		return errors.New("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("emitter: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	e.logger.Debug("sample published", "topic", topic, "seq", s.Seq, "size", len(payload))
	return nil
}

// Start launches the background publisher.
func (e *MQTTEmitter) Start() {
	e.start.Do(func() { go e.run() })
}

func (e *MQTTEmitter) run() {
	defer close(e.done)
	for s := range e.queue {
		if err := e.Publish(s); err != nil {
			e.logger.Warn("sample not published", "seq", s.Seq, "error", err)
		}
	}
}

// OnSample queues a sample for publishing. Samples are dropped when the
// queue is full or the emitter is closed.
func (e *MQTTEmitter) OnSample(s session.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- s:
	default:
		e.dropped++
	}
}

// Close publishes what is queued, then disconnects.
func (e *MQTTEmitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.Start()
	<-e.done
	return e.Disconnect()
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		e.logger.Info("mqtt disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
	Dropped   uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
		Dropped:   e.dropped,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

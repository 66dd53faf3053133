package datastore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// MQTTOptions configures the MQTT backend.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Prefix is prepended to every path to form the topic,
	// e.g. "home/node1" + "/sensors/lux".
	Prefix string

	// ConnectAttempts bounds how many retry intervals startup waits for the
	// first connection before continuing offline.
	ConnectAttempts int
	RetryInterval   time.Duration

	// BufferSize is the number of distinct leaves kept while offline.
	BufferSize int
}

// MQTTBackend maps every path to a retained topic. Reads are served from a
// cache fed by a wildcard subscription, so they never block the loop; writes
// publish retained messages without waiting for the broker.
type MQTTBackend struct {
	client paho.Client
	prefix string

	mu     sync.Mutex
	cache  map[Path]string
	buffer *ringBuffer
}

const (
	mqttQoS          = 1
	notificationRoot = "/notifications/"
)

// NewMQTTBackend connects to the broker. If the broker cannot be reached
// within ConnectAttempts retry intervals the backend is returned anyway in
// offline mode; paho keeps reconnecting in the background.
func NewMQTTBackend(opts MQTTOptions) *MQTTBackend {
	b := newMQTTBackend(opts.Prefix, opts.BufferSize)

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(opts.RetryInterval).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("datastore: mqtt connection lost")
		})
	b.client = paho.NewClient(co)

	wait := time.Duration(opts.ConnectAttempts) * opts.RetryInterval
	token := b.client.Connect()
	if !token.WaitTimeout(wait) {
		log.Warn().Str("broker", opts.Broker).Int("attempts", opts.ConnectAttempts).
			Msg("datastore: broker unreachable, continuing offline")
		return b
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("broker", opts.Broker).Msg("datastore: connect failed, continuing offline")
	}
	return b
}

func newMQTTBackend(prefix string, bufferSize int) *MQTTBackend {
	return &MQTTBackend{
		prefix: strings.TrimSuffix(prefix, "/"),
		cache:  make(map[Path]string),
		buffer: newRingBuffer(bufferSize),
	}
}

func (b *MQTTBackend) topic(p Path) string {
	return b.prefix + string(p)
}

// onConnect replays writes made while offline, then subscribes to the
// namespace. Replaying first means the retained values delivered by the
// subscription already include this node's own offline writes.
func (b *MQTTBackend) onConnect(c paho.Client) {
	log.Info().Msg("datastore: mqtt connected")

	b.mu.Lock()
	pending := b.buffer.drainAll()
	b.mu.Unlock()

	for _, msg := range pending {
		watch(c.Publish(msg.topic, mqttQoS, true, msg.payload), msg.topic)
	}
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("datastore: replayed offline writes")
	}

	c.Subscribe(b.prefix+"/#", mqttQoS, b.onMessage)
}

func (b *MQTTBackend) onMessage(_ paho.Client, msg paho.Message) {
	p := Path(strings.TrimPrefix(msg.Topic(), b.prefix))
	if strings.HasPrefix(string(p), notificationRoot) {
		return
	}
	b.mu.Lock()
	if len(msg.Payload()) == 0 {
		// An empty retained message clears the leaf
		delete(b.cache, p)
	} else {
		b.cache[p] = string(msg.Payload())
	}
	b.mu.Unlock()
}

// Get returns the last value seen on the topic.
func (b *MQTTBackend) Get(_ context.Context, p Path) (string, error) {
	if !b.IsConnected() {
		return "", ErrOffline
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.cache[p]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Put publishes a retained value. While offline the write is buffered and
// ErrBuffered is returned.
func (b *MQTTBackend) Put(_ context.Context, p Path, v string) error {
	topic := b.topic(p)

	b.mu.Lock()
	if !strings.HasPrefix(string(p), notificationRoot) {
		b.cache[p] = v
	}
	if !b.IsConnected() {
		b.buffer.push(bufferedMsg{topic: topic, payload: v})
		b.mu.Unlock()
		return ErrBuffered
	}
	b.mu.Unlock()

	watch(b.client.Publish(topic, mqttQoS, true, v), topic)
	return nil
}

// Buffered returns the number of writes waiting for a connection.
func (b *MQTTBackend) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.len()
}

// IsConnected reports whether the client currently has a live connection.
func (b *MQTTBackend) IsConnected() bool {
	return b.client != nil && b.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (b *MQTTBackend) Close() error {
	if b.client != nil {
		b.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}

// watch logs a failed publish without blocking the caller.
func watch(t paho.Token, topic string) {
	go func() {
		<-t.Done()
		if err := t.Error(); err != nil {
			log.Warn().Err(fmt.Errorf("publish %s: %w", topic, err)).Msg("datastore: write failed")
		}
	}()
}

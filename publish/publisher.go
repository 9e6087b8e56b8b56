// Package publish fans committed weather snapshots out to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-dashboard/controller"
	"weather-dashboard/datasource"
	"weather-dashboard/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errStopped = errors.New("publisher stopped")

// Message is the retained payload published for every committed snapshot
type Message struct {
	models.WeatherSnapshot
	Cycle     uint64    `json:"cycle"`
	Published time.Time `json:"published"`
}

// Publisher publishes Ready snapshots as retained JSON messages
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger

	queue chan Message

	mu       sync.Mutex
	lastSent uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a publisher for the configured broker
func New(cfg *datasource.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Broker, cfg.MQTT.Port))
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTT.Broker, "port", cfg.MQTT.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	})

	return newPublisher(mqtt.NewClient(opts), cfg.MQTT.Topic, logger)
}

func newPublisher(client mqtt.Client, topic string, logger *slog.Logger) *Publisher {
	p := &Publisher{
		client: client,
		topic:  topic,
		logger: logger,
		queue:  make(chan Message, 8),
		stopCh: make(chan struct{}),
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Connect waits for the initial broker connection, respecting ctx
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}

	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errStopped
		default:
		}
	}
}

// HandleStatus is a controller listener. It queues Ready snapshots without blocking.
func (p *Publisher) HandleStatus(st controller.Status) {
	if st.State != controller.Ready || st.Snapshot == nil {
		return
	}
	msg := Message{WeatherSnapshot: *st.Snapshot, Cycle: st.Cycle, Published: time.Now()}
	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("mqtt queue full, dropping snapshot", "cycle", st.Cycle)
	}
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.queue:
			if err := p.Publish(msg); err != nil {
				p.logger.Warn("failed to publish snapshot", "topic", p.topic, "cycle", msg.Cycle, "err", err)
			}
		case <-p.stopCh:
			return
		}
	}
}

// Publish sends one snapshot message. Messages older than the last one sent are skipped.
func (p *Publisher) Publish(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.Cycle != 0 && msg.Cycle < p.lastSent {
		return nil
	}
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	p.lastSent = msg.Cycle
	p.logger.Debug("published snapshot", "topic", p.topic, "cycle", msg.Cycle, "location", msg.Location.String())
	return nil
}

// Close stops the publisher and disconnects from the broker. It is safe to call more than once.
func (p *Publisher) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.client.Disconnect(250)
		p.logger.Info("mqtt disconnected")
	})
}

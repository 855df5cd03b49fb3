package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/logger"
	"github.com/yildizm/glimpse/internal/monitor"
	"github.com/yildizm/glimpse/internal/vision"
)

// Config configures the MQTT publisher
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Format   string
	// QueueSize bounds the number of messages waiting to be sent
	QueueSize int
	// Timeout bounds connecting and each publish
	Timeout time.Duration
	// Monitor records publish timings (optional)
	Monitor *monitor.Monitor
	Logger  *logger.Logger
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher sends one message per classified frame. Messages are queued and
// sent from a background goroutine so a slow broker never stalls the capture
// loop; when the queue is full the message is dropped.
type Publisher struct {
	cfg    Config
	log    *logger.Logger
	client client

	queue chan Message
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

// Stats contains publisher statistics
type Stats struct {
	Published uint64
	Dropped   uint64
	Errors    uint64
}

func normalize(cfg Config) Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New("publish", nil)
	}
	return cfg
}

// Connect dials the broker and starts the send goroutine. A broker that
// cannot be reached within the timeout is an error.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	cfg = normalize(cfg)
	if cfg.Broker == "" {
		return nil, fmt.Errorf("publish: broker is required")
	}

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	log := cfg.Logger
	opts.OnConnect = func(c mqtt.Client) {
		log.InfoWithFields("mqtt connection established", []logger.Field{
			logger.F("broker", broker),
			logger.F("client_id", cfg.ClientID),
		})
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.WarnWithFields("mqtt connection lost, will auto-reconnect", []logger.Field{
			logger.F("broker", broker),
			logger.Error(err),
		})
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-token.Done():
	case <-time.After(cfg.Timeout):
		return nil, fmt.Errorf("publish: timed out connecting to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("publish: failed to connect to %s: %w", broker, err)
	}

	return newPublisher(cfg, c), nil
}

func newPublisher(cfg Config, c client) *Publisher {
	cfg = normalize(cfg)
	p := &Publisher{
		cfg:    cfg,
		log:    cfg.Logger,
		client: c,
		queue:  make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// ObserveResults queues a message for the frame. Never blocks.
func (p *Publisher) ObserveResults(frame *capture.Frame, results []vision.Result) {
	if len(results) == 0 {
		return
	}

	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- NewMessage(frame, results):
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.queue:
			p.send(msg)
		case <-p.done:
			// Flush what is already queued
			for {
				select {
				case msg := <-p.queue:
					p.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(msg Message) {
	start := time.Now()
	err := p.publish(msg)
	if p.cfg.Monitor != nil {
		p.cfg.Monitor.Record(monitor.OperationPublish, time.Since(start), err != nil)
	}
	if err != nil {
		p.errors.Add(1)
		p.log.WarnWithFields("publish failed", []logger.Field{
			logger.F("topic", p.cfg.Topic),
			logger.F("seq", msg.Seq),
			logger.Error(err),
		})
		return
	}
	p.published.Add(1)
}

func (p *Publisher) publish(msg Message) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := Encode(msg, p.cfg.Format)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// Stats returns publisher statistics
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Errors:    p.errors.Load(),
	}
}

// Close flushes queued messages and disconnects.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.client.Disconnect(250)

		stats := p.Stats()
		p.log.DebugWithFields("publisher closed", []logger.Field{
			logger.F("published", stats.Published),
			logger.F("dropped", stats.Dropped),
			logger.F("errors", stats.Errors),
		})
	})
	return nil
}

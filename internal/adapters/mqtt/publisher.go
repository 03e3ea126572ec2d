// Package mqtt publishes averaged values to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/internal/metrics"
)

const (
	defaultKeepAlive      = 30
	defaultConnectTimeout = 5 * time.Second
	defaultMinBackoff     = time.Second / 8
	defaultMaxBackoff     = 30 * time.Second
)

// Config describes the broker connection.
type Config struct {
	URL            string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      uint16
	ConnectTimeout time.Duration
	TLS            *tls.Config // used for mqtts/ssl/tls URLs; nil means system roots

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Publisher keeps a connection to the broker alive in the background and
// publishes QoS 0 messages while it is up. It implements ports.BrokerClient.
type Publisher struct {
	cfg     Config
	address string
	useTLS  bool
	metrics *metrics.Metrics

	mu     sync.Mutex
	client *paho.Client

	connected atomic.Bool
	connectC  chan struct{} // closed and replaced on every successful connect

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPublisher validates cfg. Call Start to begin connecting.
func NewPublisher(cfg Config, m *metrics.Metrics) (*Publisher, error) {
	address, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "luxpipe-" + xid.New().String()
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	return &Publisher{
		cfg:      cfg,
		address:  address,
		useTLS:   useTLS,
		metrics:  m,
		connectC: make(chan struct{}),
	}, nil
}

func parseURL(raw string) (address string, useTLS bool, err error) {
	if raw == "" {
		return "", false, fmt.Errorf("broker url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid broker url %q: %w", raw, err)
	}

	var port string
	switch u.Scheme {
	case "mqtt", "tcp":
		port = "1883"
	case "mqtts", "ssl", "tls":
		port, useTLS = "8883", true
	default:
		return "", false, fmt.Errorf("unsupported broker url scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", false, fmt.Errorf("broker url %q has no host", raw)
	}
	if u.Port() != "" {
		port = u.Port()
	}

	return net.JoinHostPort(host, port), useTLS, nil
}

// Start launches the connection loop. It does not block.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		p.maintain(ctx)
	}()
}

// IsConnected reports whether the broker connection is up
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// AwaitConnection blocks until the connection is up or ctx is done.
func (p *Publisher) AwaitConnection(ctx context.Context) error {
	for {
		p.mu.Lock()
		ch := p.connectC
		p.mu.Unlock()

		if p.IsConnected() {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Publish sends payload to topic at QoS 0.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil || !p.IsConnected() {
		return domain.ErrNotConnected
	}

	if _, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     0,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close stops reconnecting and disconnects from the broker.
func (p *Publisher) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return nil
}

func (p *Publisher) maintain(ctx context.Context) {
	for attempt := uint64(1); ; attempt++ {
		client, lost, err := p.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			delay := p.backoff(attempt)
			log.Warn().
				Err(err).
				Str("broker", p.address).
				Uint64("attempt", attempt).
				Dur("retry_in", delay).
				Msg("MQTT connect failed")

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}

		attempt = 0
		p.setConnected(client)
		log.Info().Str("broker", p.address).Str("client_id", p.cfg.ClientID).Msg("MQTT client connected")

		select {
		case <-lost:
			p.setDisconnected()
			log.Warn().Str("broker", p.address).Msg("MQTT connection lost")

		case <-ctx.Done():
			p.setDisconnected()
			if err := client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
				log.Debug().Err(err).Msg("MQTT disconnect")
			}
			log.Info().Str("broker", p.address).Msg("MQTT client disconnected")
			return
		}
	}
}

func (p *Publisher) connect(ctx context.Context) (*paho.Client, <-chan struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	lost := make(chan struct{})
	var once sync.Once
	markLost := func() { once.Do(func() { close(lost) }) }

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: p.cfg.ClientID,
		OnClientError: func(err error) {
			log.Debug().Err(err).Msg("MQTT client error")
			markLost()
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			log.Debug().Uint8("reason_code", d.ReasonCode).Msg("MQTT server disconnect")
			markLost()
		},
	})

	connect := &paho.Connect{
		KeepAlive:  p.cfg.KeepAlive,
		ClientID:   p.cfg.ClientID,
		CleanStart: true,
	}
	if p.cfg.Username != "" {
		connect.Username = p.cfg.Username
		connect.UsernameFlag = true
	}
	if p.cfg.Password != "" {
		connect.Password = []byte(p.cfg.Password)
		connect.PasswordFlag = true
	}

	if _, err := client.Connect(ctx, connect); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("connect to %s: %w", p.address, err)
	}

	return client, lost, nil
}

func (p *Publisher) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{}

	if !p.useTLS {
		conn, err := dialer.DialContext(ctx, "tcp", p.address)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", p.address, err)
		}
		return conn, nil
	}

	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: p.cfg.TLS}
	conn, err := tlsDialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return nil, fmt.Errorf("dial %s over TLS: %w", p.address, err)
	}
	return conn, nil
}

// backoff doubles from MinBackoff up to MaxBackoff with 95..105% jitter.
func (p *Publisher) backoff(attempt uint64) time.Duration {
	factor := math.Pow(2, math.Min(
		float64(attempt-1),
		math.Log2(float64(p.cfg.MaxBackoff)/float64(p.cfg.MinBackoff)),
	))
	factor *= .95 + .1*rand.Float64() // #nosec G404
	return time.Duration(factor * float64(p.cfg.MinBackoff))
}

func (p *Publisher) setConnected(client *paho.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client = client
	p.connected.Store(true)
	p.metrics.BrokerConnected.Set(1)

	close(p.connectC)
	p.connectC = make(chan struct{})
}

func (p *Publisher) setDisconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client = nil
	p.connected.Store(false)
	p.metrics.BrokerConnected.Set(0)
}

package natsx

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Config for the NATS client.
type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Handler consumes one message for a registered biz route.
type Handler func(subject string, data []byte)

// Manager is the single facade the rest of the code talks to: register a
// biz route once, then publish/subscribe by biz name.
type Manager struct {
	nc *nats.Conn

	mu     sync.RWMutex
	routes map[string]string             // biz -> subject
	subs   map[string]*nats.Subscription // biz -> sub
}

// NewManager connects to NATS.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &Manager{
		nc:     nc,
		routes: make(map[string]string),
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Close drains subscriptions and the connection.
func (m *Manager) Close() error {
	if m == nil || m.nc == nil {
		return nil
	}
	m.mu.Lock()
	for biz, sub := range m.subs {
		_ = sub.Drain()
		delete(m.subs, biz)
	}
	m.mu.Unlock()
	return m.nc.Drain()
}

// RegisterRoute maps a biz name to a subject.
func (m *Manager) RegisterRoute(biz, subject string) error {
	if biz == "" || subject == "" {
		return errors.New("invalid route")
	}
	m.mu.Lock()
	m.routes[biz] = subject
	m.mu.Unlock()
	return nil
}

func (m *Manager) route(biz string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.routes[biz]
	return s, ok
}

// Publish sends data on the biz route's subject.
func (m *Manager) Publish(biz string, data []byte) error {
	subject, ok := m.route(biz)
	if !ok {
		return fmt.Errorf("no route for biz %q", biz)
	}
	return m.nc.Publish(subject, data)
}

// Subscribe attaches a handler to the biz route's subject. Every subscriber
// receives every message (broadcast, no queue group).
func (m *Manager) Subscribe(biz string, h Handler) error {
	subject, ok := m.route(biz)
	if !ok {
		return fmt.Errorf("no route for biz %q", biz)
	}
	sub, err := m.nc.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Subject, msg.Data)
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.subs[biz] = sub
	m.mu.Unlock()
	return nil
}

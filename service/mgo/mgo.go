package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"PChat/logger"
	"PChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config represents the MongoDB configuration.
type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
}

func (c *Config) clientOptions() (*options.ClientOptions, error) {
	if c.Uri == "" {
		return nil, errs.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(c.Uri)
	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(c.MaxPoolSize))
	}
	if c.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.AuthSource,
		})
	}
	return opts, nil
}

type Manager struct {
	mu        sync.RWMutex
	db        *mongo.Database
	cli       *mongo.Client
	readyCh   chan struct{} // closed once, on first successful connect
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = Manager{readyCh: make(chan struct{})}

// StartAsync runs until ctx is done; it connects with backoff, closes the
// ready channel on the first success and reconnects after sustained ping
// failures.
func StartAsync(ctx context.Context, cfg *Config) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			// connect phase
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, db, err := connect(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.cli = cli
					globalMgr.db = db
					globalMgr.mu.Unlock()
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					break
				}

				globalMgr.lastErr.Store(err)
				logger.Warnf("[mgo] connect failed: %v", err)

				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
				timer := time.NewTimer(backoff - jitter/2)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// health phase: ping until the connection looks dead, then redial
			fail := 0
			ticker := time.NewTicker(healthEvery)
			alive := true
			for alive {
				select {
				case <-ctx.Done():
					ticker.Stop()
					disconnect()
					return
				case <-ticker.C:
					globalMgr.mu.RLock()
					cli := globalMgr.cli
					globalMgr.mu.RUnlock()
					if cli == nil {
						alive = false
						break
					}
					if err := cli.Ping(ctx, nil); err != nil {
						fail++
						globalMgr.lastErr.Store(err)
						if fail >= failThresh {
							logger.Warnf("[mgo] connection lost, reconnecting: %v", err)
							disconnect()
							alive = false
						}
					} else {
						fail = 0
					}
				}
			}
			ticker.Stop()
		}
	}()
}

func connect(ctx context.Context, cfg *Config) (*mongo.Client, *mongo.Database, error) {
	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, nil, err
	}
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, nil, err
	}
	if cfg.Database == "" {
		_ = cli.Disconnect(context.Background())
		return nil, nil, errs.New("mongo database name is required")
	}
	return cli, cli.Database(cfg.Database), nil
}

func disconnect() {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.cli != nil {
		_ = globalMgr.cli.Disconnect(context.Background())
		globalMgr.cli = nil
		globalMgr.db = nil
	}
}

// Ready is closed after the first successful connect.
func Ready() <-chan struct{} {
	return globalMgr.readyCh
}

// WaitReady blocks until the first connect or ctx cancellation.
func WaitReady(ctx context.Context) error {
	globalMgr.mu.RLock()
	connected := globalMgr.db != nil
	globalMgr.mu.RUnlock()
	if connected {
		return nil
	}
	select {
	case <-globalMgr.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for mongo: %w", ctx.Err())
	}
}

// Err returns the most recent connection error.
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// ErrNotReady reports that mongo is down or not yet connected. Callers turn
// it into a 500 or a denied operation; it must never crash a request path.
var ErrNotReady = errs.New("mongo not connected")

// GetDB returns the live database handle, or ErrNotReady while the
// connection is down.
func GetDB() (*mongo.Database, error) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		return nil, ErrNotReady
	}
	return globalMgr.db, nil
}

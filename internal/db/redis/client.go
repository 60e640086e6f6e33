package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecdesk/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const (
	clientName        = "vecdesk"
	readyPollInterval = 100 * time.Millisecond
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Store implements db.Store via rueidis for Redis 8+ or Valkey with the search module.
type Store struct {
	client rueidis.Client
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	opt := rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   clientName,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH reply parsing expects RESP2 arrays
	}
	if cfg.DialTimeout > 0 {
		opt.Dialer.Timeout = cfg.DialTimeout
	}

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls until the server answers PING and lists search indexes, or timeout expires.
// A server without the search module fails immediately with db.ErrSearchUnavailable.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("timeout waiting for database: %w", errors.Join(ctx.Err(), lastErr))
			}
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if lastErr = s.Ping(ctx); lastErr != nil {
				continue
			}
			lastErr = s.checkSearch(ctx)
			if lastErr == nil || errors.Is(lastErr, db.ErrSearchUnavailable) {
				return lastErr
			}
		}
	}
}

// checkSearch issues FT._LIST, which only exists when the search module is loaded.
func (s *Store) checkSearch(ctx context.Context) error {
	err := s.do(ctx, s.b().Arbitrary(db.OpIndexList).Build()).Error()
	if err == nil {
		return nil
	}
	if isRedisErr(err, "unknown command") {
		return &db.Error{Op: db.OpIndexList, Err: db.ErrSearchUnavailable}
	}
	return &db.Error{Op: db.OpIndexList, Err: err}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

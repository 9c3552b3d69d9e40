// Package redis shares label tables between tagger processes. Tables are
// stored CBOR-encoded and extended under a distributed lock so that only one
// process allocates new identifiers at a time.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
	"text2phenotype.com/toponn/logger"
	"text2phenotype.com/toponn/numberer"
)

type DB int
type ReleaseLock func() error

const LabelsDB DB = 0

const minRefreshInterval = 100 * time.Millisecond

var (
	ErrNotFound = errors.New("label table not found")
	ErrLockLost = errors.New("label table lock was lost before saving")
)

var redisLogger = logger.NewLogger("Redis")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
	lockRetries    int
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"TOPONN_REDIS_LOCK_EXPIRATION" default:"3"`
	LockRetries             int     `envconfig:"TOPONN_REDIS_LOCK_RETRIES" default:"20"`
	Host                    string  `envconfig:"TOPONN_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"TOPONN_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"TOPONN_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"TOPONN_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"TOPONN_REDIS_AUTH_PASSWORD" default:""`
	AuthRequired            bool    `envconfig:"TOPONN_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"TOPONN_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"TOPONN_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (*Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return nil, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateClusterClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return NewClientFrom(client, cfg), nil
}

// NewClientFrom wraps an existing connection.
func NewClientFrom(client redis.UniversalClient, cfg *Config) *Client {
	return &Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
		lockRetries:    cfg.LockRetries,
	}
}

func CreateClusterClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(cfg.HASentinelSocketTimeout * float32(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

// GetNumberer loads the label table stored under redisKey.
func (client *Client) GetNumberer(ctx context.Context, redisKey string) (*numberer.Numberer, error) {
	b, err := client.client.Get(ctx, labelsKey(redisKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, redisKey)
	}
	if err != nil {
		return nil, err
	}
	return numberer.Read(bytes.NewReader(b))
}

func (client *Client) SaveNumberer(ctx context.Context, redisKey string, n *numberer.Numberer) error {
	var buf bytes.Buffer
	if err := n.Write(&buf); err != nil {
		return err
	}
	return client.client.Set(ctx, labelsKey(redisKey), buf.Bytes(), 0).Err()
}

// UpdateNumberer loads the table under redisKey (an empty table if there is
// none), passes it to updateFunc and stores the result, all while holding
// the table's lock. The lock is refreshed while updateFunc runs, and the
// table is only stored if the lock is still ours; otherwise ErrLockLost is
// returned and the stored table is left alone.
func (client *Client) UpdateNumberer(
	ctx context.Context,
	redisKey string,
	updateFunc func(n *numberer.Numberer) error,
) (err error) {
	lock, err := client.obtain(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	stopRefresh := client.keepRefreshed(ctx, lock, redisKey)
	n, err := client.GetNumberer(ctx, redisKey)
	if errors.Is(err, ErrNotFound) {
		n, err = numberer.New(), nil
	}
	if err == nil {
		err = updateFunc(n)
	}
	stopRefresh()
	if err != nil {
		return err
	}
	return client.saveLocked(ctx, lock, redisKey, n)
}

// saveLocked stores n only if the lock key still carries lock's token.
func (client *Client) saveLocked(ctx context.Context, lock *redislock.Lock, redisKey string, n *numberer.Numberer) error {
	var buf bytes.Buffer
	if err := n.Write(&buf); err != nil {
		return err
	}
	err := client.client.Watch(ctx, func(tx *redis.Tx) error {
		token, err := tx.Get(ctx, lockKey(redisKey)).Result()
		if errors.Is(err, redis.Nil) || (err == nil && token != lock.Token()) {
			return ErrLockLost
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, labelsKey(redisKey), buf.Bytes(), 0)
			return nil
		})
		return err
	}, lockKey(redisKey))
	if errors.Is(err, redis.TxFailedErr) {
		return ErrLockLost
	}
	return err
}

// keepRefreshed extends lock every half expiration until the returned
// function is called.
func (client *Client) keepRefreshed(ctx context.Context, lock *redislock.Lock, redisKey string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		interval := client.lockExpiration / 2
		if interval <= 0 {
			interval = minRefreshInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lock.Refresh(ctx, client.lockExpiration, nil); err != nil {
					redisLogger.Err(err).Str("key", redisKey).Msg("Could not refresh label table lock")
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (client *Client) Lock(ctx context.Context, redisKey string) (ReleaseLock, error) {
	lock, err := client.obtain(ctx, redisKey)
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

func (client *Client) obtain(ctx context.Context, redisKey string) (*redislock.Lock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(time.Second), client.lockRetries)
	return lockCl.Obtain(ctx, lockKey(redisKey), client.lockExpiration, &redislock.Options{RetryStrategy: str})
}

func (client *Client) Close() error {
	return client.client.Close()
}

func labelsKey(redisKey string) string {
	return fmt.Sprintf("labels:%s", redisKey)
}

func lockKey(redisKey string) string {
	return fmt.Sprintf("lock:labels:%s", redisKey)
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

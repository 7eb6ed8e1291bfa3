// Package redisstore implements health.StoreClient on Redis.
//
// Documents are stored as JSON strings under KeyPrefix+id with a TTL, so a
// marker that survives a failed cleanup still expires.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/healthprobe/health"
)

// Defaults.
const (
	DefaultKeyPrefix = "healthprobe:marker:"
	DefaultTTL       = time.Minute
)

var (
	// ErrNotConnected indicates an operation ran before Connect or after Close.
	ErrNotConnected = errors.New("redisstore: not connected")

	// ErrUnsupportedFilter indicates a filter that is not a lookup by id.
	ErrUnsupportedFilter = errors.New("redisstore: only _id filters are supported")

	// ErrMissingID indicates a document without a string _id.
	ErrMissingID = errors.New("redisstore: document has no string _id")
)

// Config configures a Client.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// TTL bounds how long a marker can outlive its cycle.
	// Default: 1 minute
	TTL time.Duration
}

// Client is a single-use Redis connection for one verification cycle.
type Client struct {
	config Config

	mu     sync.Mutex
	client *redis.Client
}

var (
	_ health.StoreClient = (*Client)(nil)
	_ health.Deleter     = (*Client)(nil)
)

// New creates an unconnected Client.
func New(config Config) *Client {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Client{config: config}
}

// Factory returns a health.StoreFactory creating a fresh Client per cycle.
func Factory(config Config) health.StoreFactory {
	return func() health.StoreClient { return New(config) }
}

// Connect opens a single-connection client and pings the server. A failed
// ping closes the client before returning.
func (c *Client) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.config.Addr,
		Password: c.config.Password,
		DB:       c.config.DB,
		PoolSize: 1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

func (c *Client) conn() (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

func (c *Client) key(id string) string {
	return c.config.KeyPrefix + id
}

// Insert stores doc under its _id.
func (c *Client) Insert(ctx context.Context, doc health.Document) (string, error) {
	client, err := c.conn()
	if err != nil {
		return "", err
	}
	id, ok := doc[health.MarkerIDField].(string)
	if !ok || id == "" {
		return "", ErrMissingID
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := client.Set(ctx, c.key(id), data, c.config.TTL).Err(); err != nil {
		return "", fmt.Errorf("set: %w", err)
	}
	return id, nil
}

// Query looks up a document by _id. A missing key yields no documents.
func (c *Client) Query(ctx context.Context, filter health.Filter) ([]health.Document, error) {
	client, err := c.conn()
	if err != nil {
		return nil, err
	}
	id, err := filterID(filter)
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	var doc health.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return []health.Document{doc}, nil
}

// Delete removes the document with the filter's _id.
func (c *Client) Delete(ctx context.Context, filter health.Filter) (int64, error) {
	client, err := c.conn()
	if err != nil {
		return 0, err
	}
	id, err := filterID(filter)
	if err != nil {
		return 0, err
	}
	n, err := client.Del(ctx, c.key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}
	return n, nil
}

// Close releases the connection. Calling Close on an unconnected Client is a
// no-op.
func (c *Client) Close(_ context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

func filterID(filter health.Filter) (string, error) {
	if len(filter) != 1 {
		return "", ErrUnsupportedFilter
	}
	id, ok := filter[health.MarkerIDField].(string)
	if !ok || id == "" {
		return "", ErrUnsupportedFilter
	}
	return id, nil
}

// Package mongostore implements health.StoreClient on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jonwraymond/healthprobe/health"
)

// Defaults.
const (
	DefaultDatabase   = "healthprobe"
	DefaultCollection = "probes"
)

// ErrNotConnected indicates an operation ran before Connect or after Close.
var ErrNotConnected = errors.New("mongostore: not connected")

// Config configures a Client.
type Config struct {
	URI        string
	Database   string
	Collection string

	// Timeout bounds driver-level connection setup and server selection.
	// Default: 5 seconds
	Timeout time.Duration
}

// Client is a single-use MongoDB connection for one verification cycle.
type Client struct {
	config Config

	mu     sync.Mutex
	client *mongo.Client
}

var (
	_ health.StoreClient = (*Client)(nil)
	_ health.Deleter     = (*Client)(nil)
)

// New creates an unconnected Client.
func New(config Config) *Client {
	if config.Database == "" {
		config.Database = DefaultDatabase
	}
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{config: config}
}

// Factory returns a health.StoreFactory creating a fresh Client per cycle.
func Factory(config Config) health.StoreFactory {
	return func() health.StoreClient { return New(config) }
}

// Connect dials the server and pings the primary. A failed ping disconnects
// before returning.
func (c *Client) Connect(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(c.config.URI).
		SetConnectTimeout(c.config.Timeout).
		SetServerSelectionTimeout(c.config.Timeout).
		SetMaxPoolSize(1)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return fmt.Errorf("ping: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

func (c *Client) collection() (*mongo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client.Database(c.config.Database).Collection(c.config.Collection), nil
}

// Insert writes doc and returns its _id as a string.
func (c *Client) Insert(ctx context.Context, doc health.Document) (string, error) {
	coll, err := c.collection()
	if err != nil {
		return "", err
	}
	res, err := coll.InsertOne(ctx, toBSON(doc))
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	return idString(res.InsertedID), nil
}

// Query returns every document matching filter.
func (c *Client) Query(ctx context.Context, filter health.Filter) ([]health.Document, error) {
	coll, err := c.collection()
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.M(filter))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	docs := make([]health.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

// Delete removes every document matching filter.
func (c *Client) Delete(ctx context.Context, filter health.Filter) (int64, error) {
	coll, err := c.collection()
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return res.DeletedCount, nil
}

// Close disconnects. Calling Close on an unconnected Client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func toBSON(doc health.Document) bson.M {
	m := make(bson.M, len(doc))
	for k, v := range doc {
		m[k] = v
	}
	return m
}

func fromBSON(m bson.M) health.Document {
	doc := make(health.Document, len(m))
	for k, v := range m {
		if k == health.MarkerIDField {
			v = idString(v)
		}
		doc[k] = v
	}
	return doc
}

// idString renders an _id the way the verifier compares it.
func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case interface{ Hex() string }:
		return v.Hex()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

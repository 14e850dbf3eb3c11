package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var (
	ErrConnection = errors.New("database connection failed")
	ErrNotOpen    = errors.New("database provider is not open")
)

// Provider owns the single MongoDB client of the process. Open it once at
// startup, hand it to the repositories and Close it on shutdown.
type Provider struct {
	uri    string
	dbName string

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

func NewProvider(uri, dbName string) *Provider {
	return &Provider{uri: uri, dbName: dbName}
}

// Open connects and pings the primary. Calling it again after a successful
// open returns the existing client; a failed attempt is not retried.
func (p *Provider) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	opts := options.Client().
		ApplyURI(p.uri).
		SetMaxPoolSize(20).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(opts)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx, readpref.Primary())

	if err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	p.client = client
	p.db = client.Database(p.dbName)

	return nil
}

// Database returns the handle all repositories share. It panics when the
// provider was never opened, which is a wiring bug.
func (p *Provider) Database() *mongo.Database {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		panic(ErrNotOpen)
	}

	return p.db
}

func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return ErrNotOpen
	}

	return client.Ping(ctx, readpref.Primary())
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}

	err := p.client.Disconnect(ctx)
	p.client = nil
	p.db = nil

	return err
}

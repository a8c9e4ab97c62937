package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names used by the point-of-sale application that owns the documents.
const (
	CollectionBranches         = "cabangs"
	CollectionProducts         = "products"
	CollectionTransactions     = "transactions"
	CollectionOperationalCosts = "operationalcosts"
)

// DefaultBackupCollections is the dump order for the mongo backend.
var DefaultBackupCollections = []string{
	CollectionBranches,
	CollectionProducts,
	CollectionTransactions,
	CollectionOperationalCosts,
}

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("mongo: connected")
	return client, client.Database(cfg.Database), nil
}

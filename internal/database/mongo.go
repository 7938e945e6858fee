package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
)

func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*repository.MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return repository.NewMongoStore(client, cfg.Database), nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"MessagingWebserver/internal/config"
	"MessagingWebserver/internal/lock"
	"MessagingWebserver/internal/service"
	"MessagingWebserver/internal/store/memory"
	mongostore "MessagingWebserver/internal/store/mongo"
	"MessagingWebserver/internal/store/postgres"
	redisstore "MessagingWebserver/internal/store/redis"
)

// backend is the set of stores the services run on, whichever database
// provides them.
type backend struct {
	users       service.UsersStore
	sessions    service.SessionsStore
	friendships service.FriendshipsStore
	messages    service.MessagesStore
	tx          service.TxRunner
	locks       service.PairLocker
	ping        func(context.Context) error

	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.Backend() {
	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				b.close()
				return nil, err
			}
			logger.Info("postgres schema applied")
		}
		b.users = postgres.NewUsersStore(pool)
		b.sessions = postgres.NewSessionsStore(pool)
		b.friendships = postgres.NewFriendshipsStore(pool)
		b.messages = postgres.NewMessagesStore(pool)
		b.tx = postgres.NewTxRunner(pool)
		b.ping = pool.Ping

	case config.BackendMongo:
		client, err := mongostore.Open(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })
		store := mongostore.NewStore(client, cfg.MongoDB)
		if cfg.Migrate {
			if err := mongostore.EnsureIndexes(ctx, store.Database()); err != nil {
				b.close()
				return nil, err
			}
			logger.Info("mongo indexes ensured", "db", cfg.MongoDB)
		}
		b.users = store.Users
		b.sessions = store.Sessions
		b.friendships = store.Friendships
		b.messages = store.Messages
		b.tx = store
		b.ping = store.Ping

	default:
		logger.Warn("no database configured, using in-memory store")
		db := memory.New()
		b.users = db.Users()
		b.sessions = db.Sessions()
		b.friendships = db.Friendships()
		b.messages = db.Messages()
		b.tx = db
		b.ping = db.Ping
	}

	if cfg.RedisAddr == "" {
		b.locks = lock.NewLocal()
		return b, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		b.close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	b.closers = append(b.closers, func() { _ = rdb.Close() })
	b.locks = lock.NewRedis(rdb, cfg.LockTTL, logger)
	b.sessions = redisstore.NewSessionsStore(rdb)

	dbPing := b.ping
	b.ping = func(ctx context.Context) error {
		if err := dbPing(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}
	return b, nil
}

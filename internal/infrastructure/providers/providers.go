package providers

import (
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/totegamma/nftsurface/client"
	"github.com/totegamma/nftsurface/internal/config"
	"github.com/totegamma/nftsurface/internal/infrastructure/database"
)

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewRedis creates the redis client backing the event feed.
func NewRedis(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, "", conf.RedisDB)
}

// NewMemcache creates the memcache client backing the asset read cache.
func NewMemcache(addr string) *memcache.Client {
	return database.NewMemcached(addr)
}

// NewClient constructs the HTTP client used to talk to a ledger instance.
func NewClient(addr string) *client.Client {
	return client.New(addr)
}

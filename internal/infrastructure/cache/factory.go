package cache

import (
	"fmt"

	"github.com/pos/backend/internal/domain/order"
	"github.com/pos/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OrderLockerFactory creates order lockers based on configuration
type OrderLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// OrderLockerFactoryOption is a functional option for configuring the factory
type OrderLockerFactoryOption func(*OrderLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) OrderLockerFactoryOption {
	return func(f *OrderLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory locker when Redis is unavailable.
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) OrderLockerFactoryOption {
	return func(f *OrderLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewOrderLockerFactory creates a new factory
func NewOrderLockerFactory(cfg config.RedisConfig, opts ...OrderLockerFactoryOption) *OrderLockerFactory {
	f := &OrderLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisLocker creates a Redis-based order locker
func (f *OrderLockerFactory) CreateRedisLocker() (*RedisOrderLocker, error) {
	locker, err := NewRedisOrderLocker(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis order locker: %w", err)
	}
	return locker, nil
}

// CreateLocker creates an order locker: Redis when enabled, otherwise in-memory.
// When Redis is enabled but unreachable it falls back to in-memory if allowed.
// WARNING: in-memory locks do not serialize decisions across process instances.
func (f *OrderLockerFactory) CreateLocker() (order.Locker, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory order locker")
		return NewInMemoryOrderLocker(), nil
	}

	locker, err := f.CreateRedisLocker()
	if err == nil {
		f.logger.Info("using Redis order locker")
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for order locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory order locker. "+
		"Concurrent accept/reject across instances is not serialized.",
		zap.Error(err),
	)
	return NewInMemoryOrderLocker(), nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"PLAYSYNC_LOCAL_REDIS_ADDR"`
	Password     string        `json:"password" env:"PLAYSYNC_LOCAL_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"PLAYSYNC_LOCAL_REDIS_DB"`
	Namespace    string        `json:"namespace" env:"PLAYSYNC_LOCAL_REDIS_NAMESPACE"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		Namespace:    "default",
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.LocalStore on a single Redis hash per namespace:
// - playsync:{namespace}:prefs -> hash of preference key to value
type Store struct {
	client    *redis.Client
	namespace string
}

// New creates a new Redis-backed store with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, namespace: config.Namespace}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// prefsKey generates the Redis key holding the namespace's preferences
func prefsKey(namespace string) string {
	if namespace == "" {
		namespace = "default"
	}
	return fmt.Sprintf("playsync:%s:prefs", namespace)
}

func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, prefsKey(s.namespace), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Save(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, prefsKey(s.namespace), key, value).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	all, err := s.client.HKeys(ctx, prefsKey(s.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys := all[:0]
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

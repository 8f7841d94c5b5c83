package redis

import (
	"context"
	"fmt"
	"io"

	redis "github.com/redis/go-redis/v9"

	"flowgraph/internal/input"
	"flowgraph/internal/transform/flowrow"
	"flowgraph/pkg/models"
)

// Config configures the Redis consumer.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	NAValues []string
}

// Consumer drains JSON flow rows from a Redis list. The list is read with
// non-blocking pops, so the source ends once the list is empty.
type Consumer struct {
	client    *redis.Client
	key       string
	converter *flowrow.Converter
	row       int
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:    client,
		key:       cfg.Key,
		converter: flowrow.NewConverter(cfg.NAValues),
	}, nil
}

// Next pops one row from the head of the list.
func (c *Consumer) Next(ctx context.Context) (*models.FlowRecord, error) {
	payload, err := c.client.LPop(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("pop redis row: %w", err)
	}
	c.row++
	record, err := c.converter.Parse(c.row, payload)
	if err != nil {
		return nil, input.Malformed("redis:"+c.key, c.row, err)
	}
	return record, nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}

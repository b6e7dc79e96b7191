package queue

import (
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

const (
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
	BackendMemory   = "memory"
)

// Factory hands out named queues for one backend over a shared connection.
// Memory queues are cached by name so the producer and the consumer in the
// same process see the same instance.
type Factory struct {
	backend  string
	redis    *goredis.Client
	rabbitMQ *RabbitMQ

	mu     sync.Mutex
	memory map[string]*MemoryQueue
}

func NewFactory(backend string, redisClient *goredis.Client, rabbitMQ *RabbitMQ) (*Factory, error) {
	normalized := strings.ToLower(strings.TrimSpace(backend))
	switch normalized {
	case BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for %s backend", normalized)
		}
	case BackendRabbitMQ:
		if rabbitMQ == nil {
			return nil, fmt.Errorf("rabbitmq client is required for %s backend", normalized)
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", backend)
	}

	return &Factory{
		backend:  normalized,
		redis:    redisClient,
		rabbitMQ: rabbitMQ,
		memory:   make(map[string]*MemoryQueue),
	}, nil
}

func (f *Factory) Backend() string { return f.backend }

func (f *Factory) Queue(name string) (Queue, error) {
	switch f.backend {
	case BackendRedis:
		return NewRedisQueue(f.redis, name)
	case BackendRabbitMQ:
		return NewRabbitMQQueue(f.rabbitMQ, name)
	}

	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if q, ok := f.memory[trimmed]; ok {
		return q, nil
	}
	q, err := NewMemoryQueue(trimmed, defaultMemoryCapacity)
	if err != nil {
		return nil, err
	}
	f.memory[trimmed] = q
	return q, nil
}

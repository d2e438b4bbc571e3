package cache

import (
	"context"
	"sync"
)

// InMemory is a mutex-guarded map satisfying the dal.KeyValue contract.
// Used for tests and dev mode; nothing survives a restart.
type InMemory struct {
	storage map[string]string

	mx sync.RWMutex
}

func NewInMemory() *InMemory {
	return &InMemory{
		storage: make(map[string]string, 100),

		mx: sync.RWMutex{},
	}
}

func (c *InMemory) Get(_ context.Context, key string) (string, bool, error) {
	c.mx.RLock()
	defer c.mx.RUnlock()

	v, ok := c.storage[key]
	return v, ok, nil
}

func (c *InMemory) Set(_ context.Context, key, value string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.storage[key] = value
	return nil
}

func (c *InMemory) Remove(_ context.Context, key string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	delete(c.storage, key)
	return nil
}

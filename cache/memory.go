package cache

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryKV is a process-local KV, nothing survives a restart
type MemoryKV struct {
	c *gocache.Cache
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.c.Set(key, value, gocache.NoExpiration)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.c.Delete(key)
	return nil
}

func (m *MemoryKV) Close() error {
	m.c.Flush()
	return nil
}

package vaultinmemory

import (
	"context"
	"strings"
	"sync"

	"github.com/keeperwallet/keeper/internal/core/ports"
)

type secureVault struct {
	store map[string][]byte
	lock  *sync.RWMutex
}

// NewSecureVault returns a volatile in-memory implementation of
// ports.SecureVault, to be used only for testing purposes.
func NewSecureVault() ports.SecureVault {
	return &secureVault{
		store: make(map[string][]byte),
		lock:  &sync.RWMutex{},
	}
}

func (v *secureVault) Get(ctx context.Context, key string) ([]byte, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	data, ok := v.store[key]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (v *secureVault) Set(ctx context.Context, key string, data []byte) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	v.store[key] = buf
	return nil
}

func (v *secureVault) Delete(ctx context.Context, key string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	delete(v.store, key)
	return nil
}

func (v *secureVault) Keys(ctx context.Context, prefix string) ([]string, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	keys := make([]string, 0, len(v.store))
	for key := range v.store {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (v *secureVault) Close() error {
	v.lock.Lock()
	defer v.lock.Unlock()

	v.store = make(map[string][]byte)
	return nil
}

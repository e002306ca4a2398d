package vaultbadger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/keeperwallet/keeper/internal/core/ports"
)

// vaultItem is one stored key/value pair. Values are expected to be
// ciphertext already, the vault adds no encryption of its own.
type vaultItem struct {
	Key  string `badgerhold:"key"`
	Data []byte
}

type secureVault struct {
	store *badgerhold.Store
	lock  *sync.Mutex

	log func(format string, a ...interface{})
}

// NewSecureVault is the factory for the badger implementation of
// ports.SecureVault. It takes care of creating the db files on disk (or
// in-memory if no baseDbDir is provided - to be used only for testing
// purposes), and opening and closing the connection to them.
func NewSecureVault(baseDbDir string, logger badger.Logger) (ports.SecureVault, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, "vault")
	}

	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vault db: %w", err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("secure vault: %s", format)
		log.Debugf(format, a...)
	}
	return &secureVault{store, &sync.Mutex{}, logFn}, nil
}

func (v *secureVault) Get(ctx context.Context, key string) ([]byte, error) {
	var item vaultItem
	if err := v.store.Get(key, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return item.Data, nil
}

func (v *secureVault) Set(ctx context.Context, key string, data []byte) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.store.Upsert(key, &vaultItem{Key: key, Data: data})
}

func (v *secureVault) Delete(ctx context.Context, key string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if err := v.store.Delete(key, &vaultItem{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (v *secureVault) Keys(ctx context.Context, prefix string) ([]string, error) {
	var items []vaultItem
	if err := v.store.Find(&items, nil); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item.Key, prefix) {
			keys = append(keys, item.Key)
		}
	}
	return keys, nil
}

func (v *secureVault) Close() error {
	return v.store.Close()
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					log.Warnf("garbage collector: %s", err)
				}
			}
		}()
	}

	return db, nil
}

package ports

import "context"

// SecureVault is the abstraction over the device's encrypted key-value
// store. The core never assumes anything about how values are protected at
// rest beyond this contract; everything secret it hands over is already
// ciphertext.
type SecureVault interface {
	// Get returns the value stored under key, or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores the value under key, overwriting any previous one.
	Set(ctx context.Context, key string, data []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases the underlying store.
	Close() error
}

package vaultbadger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	vaultbadger "github.com/keeperwallet/keeper/internal/infrastructure/secure-vault/badger"
)

var ctx = context.Background()

func TestSecureVault(t *testing.T) {
	vault, err := vaultbadger.NewSecureVault("", nil)
	require.NoError(t, err)
	defer vault.Close()

	// absent keys yield nil, not an error.
	got, err := vault.Get(ctx, "pin")
	require.NoError(t, err)
	require.Nil(t, got)

	err = vault.Set(ctx, "pin", []byte("credential"))
	require.NoError(t, err)

	got, err = vault.Get(ctx, "pin")
	require.NoError(t, err)
	require.Equal(t, []byte("credential"), got)

	// overwrite.
	err = vault.Set(ctx, "pin", []byte("other"))
	require.NoError(t, err)

	got, err = vault.Get(ctx, "pin")
	require.NoError(t, err)
	require.Equal(t, []byte("other"), got)

	err = vault.Delete(ctx, "pin")
	require.NoError(t, err)

	got, err = vault.Get(ctx, "pin")
	require.NoError(t, err)
	require.Nil(t, got)

	// deleting an absent key is not an error.
	err = vault.Delete(ctx, "pin")
	require.NoError(t, err)
}

func TestSecureVaultKeys(t *testing.T) {
	vault, err := vaultbadger.NewSecureVault("", nil)
	require.NoError(t, err)
	defer vault.Close()

	require.NoError(t, vault.Set(ctx, "key:0xaa", []byte("blob1")))
	require.NoError(t, vault.Set(ctx, "key:0xbb", []byte("blob2")))
	require.NoError(t, vault.Set(ctx, "mnemonic", []byte("blob3")))

	keys, err := vault.Keys(ctx, "key:")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"key:0xaa", "key:0xbb"}, keys)

	keys, err = vault.Keys(ctx, "")
	require.NoError(t, err)
	require.Len(t, keys, 3)
}

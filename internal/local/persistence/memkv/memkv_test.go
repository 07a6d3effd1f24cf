package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
)

func TestStore_PutGetDelete(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.RunTransaction(context.Background(), "test", func(tx persistence.Transaction) error {
		_, ok, err := tx.Get([]byte("a"))
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, tx.Put([]byte("a"), []byte("1")))

		v, ok, err := tx.Get([]byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("1"), v)

		require.NoError(t, tx.Delete([]byte("a")))

		_, ok, err = tx.Get([]byte("a"))
		require.NoError(t, err)
		assert.False(t, ok)

		return nil
	})
	require.NoError(t, err)
}

func TestStore_ScanPrefixAndRange(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.RunTransaction(context.Background(), "seed", func(tx persistence.Transaction) error {
		for _, k := range []string{"doc/a", "doc/b", "doc/c", "other/a"} {
			if err := tx.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}

		return nil
	})
	require.NoError(t, err)

	var prefixKeys []string
	var rangeKeys []string

	err = store.RunTransaction(context.Background(), "scan", func(tx persistence.Transaction) error {
		if scanErr := tx.ScanPrefix([]byte("doc/"), func(k, v []byte) (bool, error) {
			prefixKeys = append(prefixKeys, string(k))
			return true, nil
		}); scanErr != nil {
			return scanErr
		}

		if scanErr := tx.ScanRange([]byte("doc/a"), []byte("doc/c"), func(k, v []byte) (bool, error) {
			rangeKeys = append(rangeKeys, string(k))
			return true, nil
		}); scanErr != nil {
			return scanErr
		}

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"doc/a", "doc/b", "doc/c"}, prefixKeys)
	assert.Equal(t, []string{"doc/a", "doc/b"}, rangeKeys)
}

func TestStore_ScanPrefixStopsEarly(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.RunTransaction(context.Background(), "seed", func(tx persistence.Transaction) error {
		for _, k := range []string{"k1", "k2", "k3"} {
			require.NoError(t, tx.Put([]byte(k), []byte(k)))
		}

		return nil
	})
	require.NoError(t, err)

	var seen int

	err = store.RunTransaction(context.Background(), "scan", func(tx persistence.Transaction) error {
		return tx.ScanPrefix([]byte("k"), func(k, v []byte) (bool, error) {
			seen++
			return seen < 2, nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

package store

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the nutrilens home directory.
const HomeEnv = "NUTRILENS_HOME"

// DBFileName is the database file inside each store directory.
const DBFileName = "nutrilens.db"

// DefaultStoreRoot returns the directory holding all stores:
// $NUTRILENS_HOME/stores, else ~/.nutrilens/stores, else ./.nutrilens/stores.
func DefaultStoreRoot() string {
	if h := os.Getenv(HomeEnv); h != "" {
		return filepath.Join(h, "stores")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".nutrilens", "stores")
	}
	return filepath.Join(home, ".nutrilens", "stores")
}

// EncodeStorePath maps "/" in a store ID to "__" for use as a directory name.
func EncodeStorePath(storeID string) string {
	return strings.ReplaceAll(storeID, "/", "__")
}

// DecodeStorePath reverses EncodeStorePath.
func DecodeStorePath(encoded string) string {
	return strings.ReplaceAll(encoded, "__", "/")
}

// StoreDBPath returns the database path for a store.
// StoreDBPath("clinic/north") -> ~/.nutrilens/stores/clinic__north/nutrilens.db
func StoreDBPath(storeID string) string {
	return filepath.Join(DefaultStoreRoot(), EncodeStorePath(storeID), DBFileName)
}

// ListStores returns the IDs of stores that have a database on disk, in
// directory order.
func ListStores() ([]string, error) {
	entries, err := os.ReadDir(DefaultStoreRoot())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(DefaultStoreRoot(), e.Name(), DBFileName)); err != nil {
			continue
		}
		ids = append(ids, DecodeStorePath(e.Name()))
	}
	return ids, nil
}

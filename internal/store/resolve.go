package store

import (
	"fmt"
	"os"
)

// StoreEnv selects a store when no explicit one is given.
const StoreEnv = "NUTRILENS_STORE"

// ResolveStore picks the store ID: explicit, then $NUTRILENS_STORE, then
// "default".
func ResolveStore(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateStoreID(explicit); err != nil {
			return "", fmt.Errorf("invalid store ID %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if envStore := os.Getenv(StoreEnv); envStore != "" {
		if err := ValidateStoreID(envStore); err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", StoreEnv, envStore, err)
		}
		return envStore, nil
	}

	return DefaultStoreID, nil
}

// ResolveDBPath returns dbPath when set, otherwise the path of the resolved
// store.
func ResolveDBPath(dbPath, explicitStore string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	id, err := ResolveStore(explicitStore)
	if err != nil {
		return "", err
	}
	return StoreDBPath(id), nil
}

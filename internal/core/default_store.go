package core

import (
	"errors"
	"sync"

	"sbomcore/pkg/model"
)

// DefaultDocumentURI scopes the default store when InitDefaultStore is given
// an empty document URI.
const DefaultDocumentURI = "https://spdx.org/spdxdocs/sbomcore-default"

var errDefaultStoreUnset = errors.New("default store not initialised")

var defaultStore struct {
	mu     sync.RWMutex
	store  model.Store
	doc    string
	copier *CopyManager
}

// InitDefaultStore installs the process-wide store used by the shorthand
// constructors. A nil copier gets a fresh CopyManager.
func InitDefaultStore(store model.Store, documentURI string, copier *CopyManager) error {
	if store == nil {
		return model.StoreUnavailable(errNilStore)
	}
	if documentURI == "" {
		documentURI = DefaultDocumentURI
	}
	if copier == nil {
		copier = NewCopyManager()
	}
	defaultStore.mu.Lock()
	defer defaultStore.mu.Unlock()
	defaultStore.store = store
	defaultStore.doc = documentURI
	defaultStore.copier = copier
	return nil
}

// ResetDefaultStore forgets the default store. Shorthand constructors fail
// with ErrStoreUnavailable until InitDefaultStore is called again.
func ResetDefaultStore() {
	defaultStore.mu.Lock()
	defer defaultStore.mu.Unlock()
	defaultStore.store = nil
	defaultStore.doc = ""
	defaultStore.copier = nil
}

// DefaultStore returns the installed default store, document URI and copy
// manager.
func DefaultStore() (model.Store, string, *CopyManager, error) {
	defaultStore.mu.RLock()
	defer defaultStore.mu.RUnlock()
	if defaultStore.store == nil {
		return nil, "", nil, model.StoreUnavailable(errDefaultStoreUnset)
	}
	return defaultStore.store, defaultStore.doc, defaultStore.copier, nil
}

func isDefaultScope(store model.Store, documentURI string) bool {
	defaultStore.mu.RLock()
	defer defaultStore.mu.RUnlock()
	return defaultStore.store != nil && defaultStore.store == store && defaultStore.doc == documentURI
}

package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MemoryDB is an in memory implementation of ServiceStorage that is safe for concurrent use. It is meant for
// tests and local development; nothing survives a restart.
type MemoryDB struct {
	mu         sync.RWMutex
	namespaces map[string]map[string][]byte
}

func (m *MemoryDB) Init(_ ...Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces = make(map[string]map[string][]byte)
	return nil
}

func (m *MemoryDB) Type() Type {
	return Memory
}

func (m *MemoryDB) URI() string {
	return "memory"
}

func (m *MemoryDB) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namespaces != nil
}

func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) Write(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(namespace, key, value)
	return nil
}

func (m *MemoryDB) put(namespace, key string, value []byte) {
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.namespaces[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
}

func (m *MemoryDB) get(namespace, key string) []byte {
	v, ok := m.namespaces[namespace][key]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}

func (m *MemoryDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(namespace, key), nil
}

func (m *MemoryDB) Exists(_ context.Context, namespace, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[namespace][key]
	return ok, nil
}

func (m *MemoryDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string][]byte, len(m.namespaces[namespace]))
	for k, v := range m.namespaces[namespace] {
		result[k] = append([]byte(nil), v...)
	}
	return result, nil
}

func (m *MemoryDB) ReadAllKeys(_ context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.namespaces[namespace]))
	for k := range m.namespaces[namespace] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemoryDB) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		return errors.Errorf("namespace<%s> does not exist", namespace)
	}
	delete(ns, key)
	return nil
}

func (m *MemoryDB) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.namespaces[namespace]; !ok {
		return errors.Errorf("could not delete namespace<%s>, namespace does not exist", namespace)
	}
	delete(m.namespaces, namespace)
	return nil
}

type memoryTx struct {
	db      *MemoryDB
	pending map[string]map[string][]byte
}

func (t *memoryTx) Read(_ context.Context, namespace, key string) ([]byte, error) {
	if v, ok := t.pending[namespace][key]; ok {
		return append([]byte(nil), v...), nil
	}
	return t.db.get(namespace, key), nil
}

func (t *memoryTx) Write(_ context.Context, namespace, key string, value []byte) error {
	if _, ok := t.pending[namespace]; !ok {
		t.pending[namespace] = make(map[string][]byte)
	}
	t.pending[namespace][key] = append([]byte(nil), value...)
	return nil
}

// Execute holds the write lock for the duration of the business logic, serializing all transactions.
func (m *MemoryDB) Execute(ctx context.Context, businessLogicFunc BusinessLogicFunc, _ []WatchKey) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{db: m, pending: make(map[string]map[string][]byte)}
	result, err := businessLogicFunc(ctx, tx)
	if err != nil {
		return nil, err
	}
	for namespace, values := range tx.pending {
		for key, value := range values {
			m.put(namespace, key, value)
		}
	}
	return result, nil
}

var _ Tx = (*memoryTx)(nil)
var _ ServiceStorage = (*MemoryDB)(nil)

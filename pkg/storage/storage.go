package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	Bolt        Type = "bolt"
	Redis       Type = "redis"
	DatabaseSQL Type = "sql"
	Memory      Type = "memory"

	namespaceSeparator = ":"
)

type OptionKey string

// Option is a provider specific configuration value, identified by its ID.
type Option struct {
	ID     OptionKey `json:"id,omitempty" toml:"id"`
	Option any       `json:"option,omitempty" toml:"option"`
}

// WatchKey names a key that a transaction depends on. Providers that implement optimistic
// concurrency abort the transaction when a watched key changes before commit.
type WatchKey struct {
	Namespace string
	Key       string
}

// Tx is the view of the store given to a BusinessLogicFunc. Reads observe the transaction's own writes.
type Tx interface {
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Write(ctx context.Context, namespace, key string, value []byte) error
}

// BusinessLogicFunc is run inside a transaction by ServiceStorage.Execute. Returning an error rolls back every
// write made through tx.
type BusinessLogicFunc func(ctx context.Context, tx Tx) (any, error)

// ServiceStorage describes the api for storage independent of DB providers.
// Read returns a nil value and a nil error when the key does not exist.
type ServiceStorage interface {
	Init(opts ...Option) error
	Type() Type
	URI() string
	IsOpen() bool
	Close() error
	Write(ctx context.Context, namespace, key string, value []byte) error
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	ReadAllKeys(ctx context.Context, namespace string) ([]string, error)
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error

	// Execute runs businessLogicFunc atomically. All writes made through the supplied Tx are committed together,
	// or not at all.
	Execute(ctx context.Context, businessLogicFunc BusinessLogicFunc, watchKeys []WatchKey) (any, error)
}

// memory needs no init of its own
var availableStorages = map[Type]ServiceStorage{Memory: new(MemoryDB)}

// RegisterStorage registers a storage provider. Only one provider may exist per Type.
func RegisterStorage(storage ServiceStorage) error {
	if availableStorages == nil {
		availableStorages = make(map[Type]ServiceStorage)
	}
	if _, ok := availableStorages[storage.Type()]; ok {
		return errors.Errorf("storage provider<%s> already registered", storage.Type())
	}
	logrus.Debugf("registering storage provider<%s>", storage.Type())
	availableStorages[storage.Type()] = storage
	return nil
}

// IsStorageAvailable returns whether a provider is registered for the given Type.
func IsStorageAvailable(storage Type) bool {
	_, ok := availableStorages[storage]
	return ok
}

// NewStorage returns a newly initialized instance of the provider registered for storageType.
func NewStorage(storageType Type, opts ...Option) (ServiceStorage, error) {
	if !IsStorageAvailable(storageType) {
		return nil, errors.Errorf("unsupported storage type: %s", storageType)
	}
	var instance ServiceStorage
	switch storageType {
	case Bolt:
		instance = new(BoltDB)
	case Redis:
		instance = new(RedisDB)
	case DatabaseSQL:
		instance = new(SQLDB)
	case Memory:
		instance = new(MemoryDB)
	default:
		return nil, errors.Errorf("unsupported storage type: %s", storageType)
	}
	if err := instance.Init(opts...); err != nil {
		return nil, errors.Wrapf(err, "initializing storage<%s>", storageType)
	}
	return instance, nil
}

// Join combines a namespace and key the way flat key space providers (redis, sql) store them.
func Join(parts ...string) string {
	return strings.Join(parts, namespaceSeparator)
}

// optionValue returns the value of the option with the given id, or nil.
func optionValue(id OptionKey, opts []Option) any {
	for _, opt := range opts {
		if opt.ID == id {
			return opt.Option
		}
	}
	return nil
}

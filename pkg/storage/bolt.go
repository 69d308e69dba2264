package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

func init() {
	if err := RegisterStorage(new(BoltDB)); err != nil {
		panic(err)
	}
}

const (
	DBFilePrefix                   = "issuer-service"
	BoltDBFilePathOption OptionKey = "boltdb-filepath-option"

	boltOpenTimeout = 3 * time.Second
)

// BoltDB is a file-based storage instance for Bolt https://github.com/etcd-io/bbolt
type BoltDB struct {
	db *bolt.DB
}

// Init instantiates a file-based storage instance. The file path may be supplied with BoltDBFilePathOption.
func (b *BoltDB) Init(opts ...Option) error {
	dbFilePath := DBFilePrefix + "_bolt.db"
	if v := optionValue(BoltDBFilePathOption, opts); v != nil {
		path, ok := v.(string)
		if !ok || path == "" {
			return errors.New("bolt file path option must be a non-empty string")
		}
		dbFilePath = path
	}
	db, err := bolt.Open(dbFilePath, 0600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return errors.Wrapf(err, "opening bolt db<%s>", dbFilePath)
	}
	b.db = db
	return nil
}

func (b *BoltDB) Type() Type {
	return Bolt
}

func (b *BoltDB) URI() string {
	return b.db.Path()
}

func (b *BoltDB) IsOpen() bool {
	return b.db != nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) Write(_ context.Context, namespace string, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return boltPut(tx, namespace, key, value)
	})
}

func boltPut(tx *bolt.Tx, namespace, key string, value []byte) error {
	bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
	if err != nil {
		return errors.Wrapf(err, "creating namespace<%s>", namespace)
	}
	return bucket.Put([]byte(key), value)
}

func boltGet(tx *bolt.Tx, namespace, key string) []byte {
	bucket := tx.Bucket([]byte(namespace))
	if bucket == nil {
		logrus.Debugf("namespace<%s> does not exist", namespace)
		return nil
	}
	value := bucket.Get([]byte(key))
	if value == nil {
		return nil
	}
	// values are only valid for the life of the bolt transaction
	result := make([]byte, len(value))
	copy(result, value)
	return result
}

func (b *BoltDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		result = boltGet(tx, namespace, key)
		return nil
	})
	return result, err
}

func (b *BoltDB) Exists(_ context.Context, namespace, key string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		exists = bucket.Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

func (b *BoltDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			logrus.Debugf("namespace<%s> does not exist", namespace)
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			value := make([]byte, len(v))
			copy(value, v)
			result[string(k)] = value
			return nil
		})
	})
	return result, err
}

func (b *BoltDB) ReadAllKeys(_ context.Context, namespace string) ([]string, error) {
	var result []string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			result = append(result, string(k))
			return nil
		})
	})
	return result, err
}

func (b *BoltDB) Delete(_ context.Context, namespace, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return errors.Errorf("namespace<%s> does not exist", namespace)
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *BoltDB) DeleteNamespace(_ context.Context, namespace string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(namespace)); err != nil {
			return errors.Wrapf(err, "could not delete namespace<%s>", namespace)
		}
		return nil
	})
}

type boltTx struct {
	tx *bolt.Tx
}

func (b *boltTx) Read(_ context.Context, namespace, key string) ([]byte, error) {
	return boltGet(b.tx, namespace, key), nil
}

func (b *boltTx) Write(_ context.Context, namespace, key string, value []byte) error {
	return boltPut(b.tx, namespace, key, value)
}

// Execute runs the business logic in a single read-write bolt transaction. Bolt allows one writer at a time, so
// watch keys are not needed.
func (b *BoltDB) Execute(ctx context.Context, businessLogicFunc BusinessLogicFunc, _ []WatchKey) (any, error) {
	var result any
	var logicErr error
	err := b.db.Update(func(tx *bolt.Tx) error {
		result, logicErr = businessLogicFunc(ctx, &boltTx{tx: tx})
		return logicErr
	})
	if logicErr != nil {
		return nil, logicErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "committing bolt transaction")
	}
	return result, nil
}

var _ Tx = (*boltTx)(nil)
var _ ServiceStorage = (*BoltDB)(nil)

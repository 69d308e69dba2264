package storage

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := RegisterStorage(new(RedisDB)); err != nil {
		panic(err)
	}
}

const (
	RedisScanBatchSize = 1000
	MaxElapsedTime     = 6 * time.Second
	MaxTxRetries       = 5

	RedisAddressOption OptionKey = "redis-address-option"
	PasswordOption     OptionKey = "storage-password-option"
)

type RedisDB struct {
	db *goredislib.Client
}

func (b *RedisDB) Init(opts ...Option) error {
	address, password, err := processRedisOptions(opts...)
	if err != nil {
		return err
	}

	client := goredislib.NewClient(&goredislib.Options{
		Addr:     address,
		Password: password,
	})
	if err = redisotel.InstrumentTracing(client); err != nil {
		return errors.Wrap(err, "instrumenting redis tracing")
	}

	b.db = client
	return nil
}

func processRedisOptions(opts ...Option) (address, password string, err error) {
	addressValue := optionValue(RedisAddressOption, opts)
	if addressValue == nil {
		return "", "", errors.New("redis address option is required")
	}
	address, ok := addressValue.(string)
	if !ok || address == "" {
		return "", "", errors.New("redis address option must be a non-empty string")
	}
	if passwordValue := optionValue(PasswordOption, opts); passwordValue != nil {
		password, ok = passwordValue.(string)
		if !ok {
			return "", "", errors.New("redis password option must be a string")
		}
	}
	return address, password, nil
}

func (b *RedisDB) Type() Type {
	return Redis
}

func (b *RedisDB) URI() string {
	return b.db.Options().Addr
}

func (b *RedisDB) IsOpen() bool {
	if err := b.db.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).Error("pinging redis")
		return false
	}
	return true
}

func (b *RedisDB) Close() error {
	return b.db.Close()
}

func (b *RedisDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	// Zero expiration means the key has no expiration time.
	return b.db.Set(ctx, Join(namespace, key), value, 0).Err()
}

func (b *RedisDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	return redisGet(ctx, b.db, Join(namespace, key))
}

type redisGetter interface {
	Get(ctx context.Context, key string) *goredislib.StringCmd
}

func redisGet(ctx context.Context, db redisGetter, key string) ([]byte, error) {
	res, err := db.Get(ctx, key).Bytes()
	if errors.Is(err, goredislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *RedisDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := b.db.Exists(ctx, Join(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := b.db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "reading values")
	}
	prefix := Join(namespace, "")
	for i, key := range keys {
		// a nil value means the key was deleted between the scan and the read
		value, ok := values[i].(string)
		if !ok {
			continue
		}
		result[strings.TrimPrefix(key, prefix)] = []byte(value)
	}
	return result, nil
}

func (b *RedisDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	prefix := Join(namespace, "")
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, strings.TrimPrefix(key, prefix))
	}
	return result, nil
}

func (b *RedisDB) readAllKeys(ctx context.Context, namespace string) ([]string, error) {
	var cursor uint64
	var allKeys []string
	match := Join(namespace, "*")
	for {
		keys, nextCursor, err := b.db.Scan(ctx, cursor, match, RedisScanBatchSize).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scanning keys")
		}
		allKeys = append(allKeys, keys...)
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return allKeys, nil
}

func (b *RedisDB) Delete(ctx context.Context, namespace, key string) error {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.Errorf("namespace<%s> does not exist", namespace)
	}
	return b.db.Del(ctx, Join(namespace, key)).Err()
}

func (b *RedisDB) DeleteNamespace(ctx context.Context, namespace string) error {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.Errorf("could not delete namespace<%s>, namespace does not exist", namespace)
	}
	return b.db.Del(ctx, keys...).Err()
}

// redisTx buffers writes until the business logic returns so they can be queued in a single MULTI/EXEC.
type redisTx struct {
	tx      *goredislib.Tx
	pending map[string][]byte
	order   []string
}

func (r *redisTx) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	k := Join(namespace, key)
	if v, ok := r.pending[k]; ok {
		return v, nil
	}
	return redisGet(ctx, r.tx, k)
}

func (r *redisTx) Write(_ context.Context, namespace, key string, value []byte) error {
	k := Join(namespace, key)
	if _, ok := r.pending[k]; !ok {
		r.order = append(r.order, k)
	}
	r.pending[k] = value
	return nil
}

// Execute runs the business logic under WATCH on the given keys and commits its writes with MULTI/EXEC. When a
// watched key changes before EXEC the whole function is retried with exponential backoff.
func (b *RedisDB) Execute(ctx context.Context, businessLogicFunc BusinessLogicFunc, watchKeys []WatchKey) (any, error) {
	keys := make([]string, 0, len(watchKeys))
	for _, wk := range watchKeys {
		keys = append(keys, Join(wk.Namespace, wk.Key))
	}

	var result any
	var logicErr error
	txFunc := func(tx *goredislib.Tx) error {
		rTx := &redisTx{tx: tx, pending: make(map[string][]byte)}
		res, err := businessLogicFunc(ctx, rTx)
		if logicErr = err; err != nil {
			return err
		}
		if _, err = tx.TxPipelined(ctx, func(pipe goredislib.Pipeliner) error {
			for _, k := range rTx.order {
				pipe.Set(ctx, k, rTx.pending[k], 0)
			}
			return nil
		}); err != nil {
			return err
		}
		result = res
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = MaxElapsedTime
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, MaxTxRetries), ctx)
	err := backoff.Retry(func() error {
		logicErr = nil
		err := b.db.Watch(ctx, txFunc, keys...)
		if errors.Is(err, goredislib.TxFailedErr) {
			logrus.WithError(err).Debug("watched key changed, retrying transaction")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if logicErr != nil {
		return nil, logicErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "executing transaction")
	}
	return result, nil
}

var _ Tx = (*redisTx)(nil)
var _ ServiceStorage = (*RedisDB)(nil)

package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := RegisterStorage(new(SQLDB)); err != nil {
		panic(err)
	}
}

const (
	SQLConnectionString OptionKey = "sql-connection-string-option"
	SQLDriverName       OptionKey = "sql-driver-name-option"

	// postgres SQLSTATE for a serializable transaction that lost a conflict
	serializationFailure = "40001"
)

type SQLDB struct {
	db               *sql.DB
	connectionString string
}

func (s *SQLDB) Init(opts ...Option) error {
	connString, sqlDriverName, err := processSQLOptions(opts...)
	if err != nil {
		return err
	}
	s.connectionString = connString

	db, err := sql.Open(sqlDriverName, connString)
	if err != nil {
		return err
	}

	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS key_values (
    key varchar PRIMARY KEY,
    value varchar
);`); err != nil {
		return errors.Wrap(err, "creating key_values table")
	}

	s.db = db
	return nil
}

func processSQLOptions(opts ...Option) (connString string, sqlDriverName string, err error) {
	for _, opt := range opts {
		switch opt.ID {
		case SQLConnectionString:
			maybeConnString, ok := opt.Option.(string)
			if !ok {
				err = errors.New("sql connection string must be a string")
				return
			}
			connString = maybeConnString
		case SQLDriverName:
			maybeDriverName, ok := opt.Option.(string)
			if !ok {
				err = errors.New("sql driver name must be a string")
				return
			}
			sqlDriverName = maybeDriverName
		}
	}
	if len(connString) == 0 || len(sqlDriverName) == 0 {
		err = errors.New("sql connection string and driver name must not be empty")
		return
	}
	return connString, sqlDriverName, nil
}

func (s *SQLDB) Type() Type {
	return DatabaseSQL
}

func (s *SQLDB) URI() string {
	return s.connectionString
}

func (s *SQLDB) IsOpen() bool {
	if err := s.db.Ping(); err != nil {
		logrus.WithError(err).Error("pinging db")
		return false
	}
	return true
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}

type execContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryRow interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func write(ctx context.Context, db execContext, namespace, key string, value []byte) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO key_values (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		Join(namespace, key), base64.RawStdEncoding.EncodeToString(value))
	return err
}

func read(ctx context.Context, db queryRow, namespace, key string) ([]byte, error) {
	r := db.QueryRowContext(ctx, "SELECT value FROM key_values WHERE key = $1", Join(namespace, key))
	var value string
	if err := r.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return base64.RawStdEncoding.DecodeString(value)
}

func (s *SQLDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	return write(ctx, s.db, namespace, key, value)
}

func (s *SQLDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	return read(ctx, s.db, namespace, key)
}

func (s *SQLDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM key_values WHERE key = $1)", Join(namespace, key)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *SQLDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM key_values WHERE key LIKE $1", Join(namespace, "%"))
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	prefixLen := len(namespace) + len(namespaceSeparator)
	allValues := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		decoded, err := base64.RawStdEncoding.DecodeString(value)
		if err != nil {
			return nil, err
		}
		allValues[key[prefixLen:]] = decoded
	}
	return allValues, rows.Err()
}

func (s *SQLDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM key_values WHERE key LIKE $1", Join(namespace, "%"))
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	prefixLen := len(namespace) + len(namespaceSeparator)
	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key[prefixLen:])
	}
	return keys, rows.Err()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logrus.WithError(err).Error("closing rows")
	}
}

func (s *SQLDB) Delete(ctx context.Context, namespace, key string) error {
	var namespaceExists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM key_values WHERE key LIKE $1)", Join(namespace, "%")).
		Scan(&namespaceExists); err != nil {
		return err
	}
	if !namespaceExists {
		return errors.Errorf("namespace<%s> does not exist", namespace)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM key_values WHERE key = $1", Join(namespace, key))
	return err
}

func (s *SQLDB) DeleteNamespace(ctx context.Context, namespace string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM key_values WHERE key LIKE $1", Join(namespace, "%"))
	if err != nil {
		return errors.Wrapf(err, "could not delete namespace<%s>", namespace)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Errorf("could not delete namespace<%s>, namespace does not exist", namespace)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	return read(ctx, s.tx, namespace, key)
}

func (s *sqlTx) Write(ctx context.Context, namespace, key string, value []byte) error {
	return write(ctx, s.tx, namespace, key, value)
}

// Execute runs the business logic in a serializable transaction. Transactions aborted by a serialization
// conflict are retried with exponential backoff.
func (s *SQLDB) Execute(ctx context.Context, businessLogicFunc BusinessLogicFunc, _ []WatchKey) (any, error) {
	var result any
	var logicErr error
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = MaxElapsedTime
	expBackoff.InitialInterval = 50 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, MaxTxRetries), ctx)
	err := backoff.Retry(func() error {
		logicErr = nil
		res, err := s.execute(ctx, func(ctx context.Context, tx Tx) (any, error) {
			res, err := businessLogicFunc(ctx, tx)
			logicErr = err
			return res, err
		})
		if isSerializationFailure(err) {
			logrus.WithError(err).Debug("serialization failure, retrying transaction")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}, policy)
	// business errors reach the caller unchanged
	if logicErr != nil {
		return nil, logicErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "executing transaction")
	}
	return result, nil
}

func (s *SQLDB) execute(ctx context.Context, businessLogicFunc BusinessLogicFunc) (any, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func(tx *sql.Tx) {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logrus.WithError(err).Error("unable to rollback")
		}
	}(tx)

	result, err := businessLogicFunc(ctx, &sqlTx{tx: tx})
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return result, nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == serializationFailure
}

var _ Tx = (*sqlTx)(nil)
var _ ServiceStorage = (*SQLDB)(nil)

package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/pkg/encryption"
)

// EncryptedWrapper encrypts every value before handing it to the wrapped ServiceStorage, and decrypts on the way
// out. Keys and namespaces are stored in the clear.
type EncryptedWrapper struct {
	s         ServiceStorage
	encrypter encryption.Encrypter
	decrypter encryption.Decrypter
}

func NewEncryptedWrapper(s ServiceStorage, encrypter encryption.Encrypter, decrypter encryption.Decrypter) *EncryptedWrapper {
	return &EncryptedWrapper{
		s:         s,
		encrypter: encrypter,
		decrypter: decrypter,
	}
}

func (e EncryptedWrapper) Init(opts ...Option) error {
	return e.s.Init(opts...)
}

func (e EncryptedWrapper) Type() Type {
	return e.s.Type()
}

func (e EncryptedWrapper) URI() string {
	return e.s.URI()
}

func (e EncryptedWrapper) IsOpen() bool {
	return e.s.IsOpen()
}

func (e EncryptedWrapper) Close() error {
	return e.s.Close()
}

func (e EncryptedWrapper) Write(ctx context.Context, namespace, key string, value []byte) error {
	encryptedData, err := e.encrypter.Encrypt(ctx, value, nil)
	if err != nil {
		return errors.Wrap(err, "encrypting data")
	}
	return e.s.Write(ctx, namespace, key, encryptedData)
}

func (e EncryptedWrapper) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	storedBytes, err := e.s.Read(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	return e.decrypt(ctx, storedBytes)
}

func (e EncryptedWrapper) decrypt(ctx context.Context, storedBytes []byte) ([]byte, error) {
	if storedBytes == nil {
		return nil, nil
	}
	decryptedData, err := e.decrypter.Decrypt(ctx, storedBytes, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting data")
	}
	return decryptedData, nil
}

func (e EncryptedWrapper) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return e.s.Exists(ctx, namespace, key)
}

func (e EncryptedWrapper) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	encryptedKeyedBytes, err := e.s.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	decryptedValues := make(map[string][]byte, len(encryptedKeyedBytes))
	for key, encryptedBytes := range encryptedKeyedBytes {
		decryptedData, err := e.decrypt(ctx, encryptedBytes)
		if err != nil {
			return nil, err
		}
		decryptedValues[key] = decryptedData
	}
	return decryptedValues, nil
}

func (e EncryptedWrapper) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	return e.s.ReadAllKeys(ctx, namespace)
}

func (e EncryptedWrapper) Delete(ctx context.Context, namespace, key string) error {
	return e.s.Delete(ctx, namespace, key)
}

func (e EncryptedWrapper) DeleteNamespace(ctx context.Context, namespace string) error {
	return e.s.DeleteNamespace(ctx, namespace)
}

type encryptedTx struct {
	tx      Tx
	wrapper EncryptedWrapper
}

func (m encryptedTx) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	storedBytes, err := m.tx.Read(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	return m.wrapper.decrypt(ctx, storedBytes)
}

func (m encryptedTx) Write(ctx context.Context, namespace, key string, value []byte) error {
	encryptedData, err := m.wrapper.encrypter.Encrypt(ctx, value, nil)
	if err != nil {
		return errors.Wrap(err, "encrypting data")
	}
	return m.tx.Write(ctx, namespace, key, encryptedData)
}

func (e EncryptedWrapper) Execute(ctx context.Context, businessLogicFunc BusinessLogicFunc, watchKeys []WatchKey) (any, error) {
	return e.s.Execute(ctx, func(ctx context.Context, tx Tx) (any, error) {
		return businessLogicFunc(ctx, encryptedTx{tx: tx, wrapper: e})
	}, watchKeys)
}

var _ Tx = (*encryptedTx)(nil)
var _ ServiceStorage = (*EncryptedWrapper)(nil)

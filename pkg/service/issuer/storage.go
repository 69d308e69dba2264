package issuer

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/encryption"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

const (
	namespace      = "issuer"
	didNamespace   = "issuer-did"
	metaNamespace  = "issuer-meta"
	saltKey        = "key-encryption-salt"
	encryptionInfo = "issuer-private-key"
)

// storedIssuer is the persisted form of an IssuerIdentity. The private key is only ever stored encrypted.
type storedIssuer struct {
	ID                  string                 `json:"id"`
	DID                 string                 `json:"did"`
	Domain              string                 `json:"domain"`
	PublicKeyJWK        keyaccess.PublicKeyJWK `json:"publicKeyJwk"`
	EncryptedPrivateKey []byte                 `json:"encryptedPrivateKey"`
	Organization        string                 `json:"organization,omitempty"`
	Description         string                 `json:"description,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
}

type Storage struct {
	db        storage.ServiceStorage
	encrypter encryption.Encrypter
	decrypter encryption.Decrypter
}

// NewIssuerStorage derives the private key encryption key from password and the persisted salt, creating the salt on
// first use.
func NewIssuerStorage(ctx context.Context, db storage.ServiceStorage, password string) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	if password == "" {
		return nil, errors.New("key password cannot be empty")
	}
	salt, err := loadOrCreateSalt(ctx, db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not load key encryption salt")
	}
	enc, err := encryption.NewPasswordEncrypter(password, salt)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not create key encrypter")
	}
	return &Storage{db: db, encrypter: enc, decrypter: enc}, nil
}

func loadOrCreateSalt(ctx context.Context, db storage.ServiceStorage) ([]byte, error) {
	generated, err := util.GenerateSalt(util.Argon2SaltSize)
	if err != nil {
		return nil, err
	}
	watch := []storage.WatchKey{{Namespace: metaNamespace, Key: saltKey}}
	result, err := db.Execute(ctx, func(ctx context.Context, tx storage.Tx) (any, error) {
		existing, err := tx.Read(ctx, metaNamespace, saltKey)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return existing, nil
		}
		if err = tx.Write(ctx, metaNamespace, saltKey, generated); err != nil {
			return nil, err
		}
		return generated, nil
	}, watch)
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// InsertIfAbsent stores the issuer unless one already exists for its DID, in which case the existing issuer is
// returned with created set to false.
func (s *Storage) InsertIfAbsent(ctx context.Context, issuer IssuerIdentity) (*IssuerIdentity, bool, error) {
	record, err := s.seal(ctx, issuer)
	if err != nil {
		return nil, false, err
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return nil, false, util.LoggingErrorMsgf(err, "could not marshal issuer<%s>", issuer.ID)
	}

	type outcome struct {
		existing []byte
	}
	watch := []storage.WatchKey{{Namespace: didNamespace, Key: issuer.DID}}
	result, err := s.db.Execute(ctx, func(ctx context.Context, tx storage.Tx) (any, error) {
		existingID, err := tx.Read(ctx, didNamespace, issuer.DID)
		if err != nil {
			return nil, err
		}
		if len(existingID) > 0 {
			existing, err := tx.Read(ctx, namespace, string(existingID))
			if err != nil {
				return nil, err
			}
			if len(existing) == 0 {
				return nil, errors.Errorf("did index for <%s> points at missing issuer<%s>", issuer.DID, existingID)
			}
			return outcome{existing: existing}, nil
		}
		if err = tx.Write(ctx, namespace, issuer.ID, recordBytes); err != nil {
			return nil, err
		}
		if err = tx.Write(ctx, didNamespace, issuer.DID, []byte(issuer.ID)); err != nil {
			return nil, err
		}
		return outcome{}, nil
	}, watch)
	if err != nil {
		return nil, false, errors.Wrapf(err, "storing issuer<%s>", issuer.DID)
	}

	if existing := result.(outcome).existing; existing != nil {
		stored, err := s.open(ctx, existing)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}
	return &issuer, true, nil
}

// GetIssuer returns nil when no issuer has the id.
func (s *Storage) GetIssuer(ctx context.Context, id string) (*IssuerIdentity, error) {
	recordBytes, err := s.db.Read(ctx, namespace, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading issuer<%s>", id)
	}
	if len(recordBytes) == 0 {
		return nil, nil
	}
	return s.open(ctx, recordBytes)
}

// GetIssuerByDID returns nil when no issuer has the DID.
func (s *Storage) GetIssuerByDID(ctx context.Context, did string) (*IssuerIdentity, error) {
	id, err := s.db.Read(ctx, didNamespace, did)
	if err != nil {
		return nil, errors.Wrapf(err, "reading did index for <%s>", did)
	}
	if len(id) == 0 {
		return nil, nil
	}
	return s.GetIssuer(ctx, string(id))
}

// ListIssuers returns every issuer, earliest created first. Ties are broken by id.
func (s *Storage) ListIssuers(ctx context.Context) ([]IssuerIdentity, error) {
	all, err := s.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "reading all issuers")
	}
	issuers := make([]IssuerIdentity, 0, len(all))
	for _, recordBytes := range all {
		issuer, err := s.open(ctx, recordBytes)
		if err != nil {
			return nil, err
		}
		issuers = append(issuers, *issuer)
	}
	sort.Slice(issuers, func(i, j int) bool {
		if issuers[i].CreatedAt.Equal(issuers[j].CreatedAt) {
			return issuers[i].ID < issuers[j].ID
		}
		return issuers[i].CreatedAt.Before(issuers[j].CreatedAt)
	})
	return issuers, nil
}

func (s *Storage) seal(ctx context.Context, issuer IssuerIdentity) (*storedIssuer, error) {
	privateKeyBytes, err := json.Marshal(issuer.PrivateKeyJWK)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling private key")
	}
	encrypted, err := s.encrypter.Encrypt(ctx, privateKeyBytes, []byte(encryptionInfo))
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "could not encrypt private key of issuer<%s>", issuer.ID)
	}
	return &storedIssuer{
		ID:                  issuer.ID,
		DID:                 issuer.DID,
		Domain:              issuer.Domain,
		PublicKeyJWK:        issuer.PublicKeyJWK,
		EncryptedPrivateKey: encrypted,
		Organization:        issuer.Organization,
		Description:         issuer.Description,
		CreatedAt:           issuer.CreatedAt,
	}, nil
}

func (s *Storage) open(ctx context.Context, recordBytes []byte) (*IssuerIdentity, error) {
	var record storedIssuer
	if err := json.Unmarshal(recordBytes, &record); err != nil {
		return nil, errors.Wrap(err, "unmarshalling issuer")
	}
	decrypted, err := s.decrypter.Decrypt(ctx, record.EncryptedPrivateKey, []byte(encryptionInfo))
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "could not decrypt private key of issuer<%s>", record.ID)
	}
	var privateKeyJWK keyaccess.PrivateKeyJWK
	if err = json.Unmarshal(decrypted, &privateKeyJWK); err != nil {
		return nil, errors.Wrap(err, "unmarshalling private key")
	}
	return &IssuerIdentity{
		ID:            record.ID,
		DID:           record.DID,
		Domain:        record.Domain,
		PublicKeyJWK:  record.PublicKeyJWK,
		PrivateKeyJWK: privateKeyJWK,
		Organization:  record.Organization,
		Description:   record.Description,
		CreatedAt:     record.CreatedAt,
	}, nil
}

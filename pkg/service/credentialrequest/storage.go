package credentialrequest

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

const (
	namespace       = "credential-request"
	issuedNamespace = "issued-credential"
)

type Storage struct {
	db storage.ServiceStorage
}

func NewCredentialRequestStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	return &Storage{db: db}, nil
}

// Insert stores a new request, failing with ErrConflict when its case id is taken.
func (s *Storage) Insert(ctx context.Context, request CredentialRequest) error {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return util.LoggingErrorMsgf(err, "could not marshal request for case<%s>", request.CaseID)
	}
	_, err = s.db.Execute(ctx, func(ctx context.Context, tx storage.Tx) (any, error) {
		existing, err := tx.Read(ctx, namespace, request.CaseID)
		if err != nil {
			return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
		}
		if len(existing) > 0 {
			return nil, framework.NewErrorf(framework.ErrConflict, "a request for case<%s> already exists", request.CaseID)
		}
		if err = tx.Write(ctx, namespace, request.CaseID, requestBytes); err != nil {
			return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
		}
		return nil, nil
	}, watchRequest(request.CaseID))
	return persistenceError(err)
}

// Get returns nil when no request exists for the case.
func (s *Storage) Get(ctx context.Context, caseID string) (*CredentialRequest, error) {
	requestBytes, err := s.db.Read(ctx, namespace, caseID)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	return unmarshalRequest(requestBytes)
}

func (s *Storage) List(ctx context.Context) ([]CredentialRequest, error) {
	all, err := s.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, errors.Wrap(err, "reading all requests"))
	}
	requests := make([]CredentialRequest, 0, len(all))
	for _, requestBytes := range all {
		request, err := unmarshalRequest(requestBytes)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, nil
}

// UpdateFunc mutates a request inside a transaction. Returning an error aborts the update.
type UpdateFunc func(request *CredentialRequest) error

// Update applies updateFunc to the stored request atomically.
func (s *Storage) Update(ctx context.Context, caseID string, updateFunc UpdateFunc) (*CredentialRequest, error) {
	result, err := s.db.Execute(ctx, func(ctx context.Context, tx storage.Tx) (any, error) {
		request, err := readRequest(ctx, tx, caseID)
		if err != nil {
			return nil, err
		}
		if err = updateFunc(request); err != nil {
			return nil, err
		}
		if err = writeRequest(ctx, tx, *request); err != nil {
			return nil, err
		}
		return request, nil
	}, watchRequest(caseID))
	if err != nil {
		return nil, persistenceError(err)
	}
	return result.(*CredentialRequest), nil
}

// MarkIssuedResult is the outcome of MarkIssued.
type MarkIssuedResult struct {
	Request       CredentialRequest
	Credential    IssuedCredential
	AlreadyIssued bool
}

// MarkIssued moves the request from holder_ready to issued and stores the credential, in one transaction. When the
// request is already issued, or has since moved on to the verifier, the stored credential is returned instead and
// nothing is written. The credential is only committed while the request is still bound to the holder it was built
// for.
func (s *Storage) MarkIssued(ctx context.Context, credential IssuedCredential, builtFor HolderBinding) (*MarkIssuedResult, error) {
	caseID := credential.CaseID
	credentialBytes, err := json.Marshal(credential)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "could not marshal issued credential for case<%s>", caseID)
	}
	result, err := s.db.Execute(ctx, func(ctx context.Context, tx storage.Tx) (any, error) {
		request, err := readRequest(ctx, tx, caseID)
		if err != nil {
			return nil, err
		}
		if request.Status.HasIssued() {
			stored, err := readIssued(ctx, tx, caseID)
			if err != nil {
				return nil, err
			}
			return &MarkIssuedResult{Request: *request, Credential: *stored, AlreadyIssued: true}, nil
		}
		if err = checkTransition(caseID, request.Status, StatusIssued); err != nil {
			return nil, err
		}
		if !request.Binding().Equal(builtFor) {
			return nil, framework.NewErrorf(framework.ErrInvalidState, "case<%s> holder changed during issuance", util.SanitizeLog(caseID))
		}
		issuedAt := credential.IssuedAt
		request.Status = StatusIssued
		request.IssuedAt = &issuedAt
		request.UpdatedAt = issuedAt
		if err = writeRequest(ctx, tx, *request); err != nil {
			return nil, err
		}
		if err = tx.Write(ctx, issuedNamespace, caseID, credentialBytes); err != nil {
			return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
		}
		return &MarkIssuedResult{Request: *request, Credential: credential}, nil
	}, watchRequest(caseID))
	if err != nil {
		return nil, persistenceError(err)
	}
	return result.(*MarkIssuedResult), nil
}

// GetIssued returns nil when no credential was issued for the case.
func (s *Storage) GetIssued(ctx context.Context, caseID string) (*IssuedCredential, error) {
	credentialBytes, err := s.db.Read(ctx, issuedNamespace, caseID)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	if len(credentialBytes) == 0 {
		return nil, nil
	}
	var credential IssuedCredential
	if err = json.Unmarshal(credentialBytes, &credential); err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, errors.Wrap(err, "unmarshalling issued credential"))
	}
	return &credential, nil
}

func watchRequest(caseID string) []storage.WatchKey {
	return []storage.WatchKey{{Namespace: namespace, Key: caseID}}
}

func readRequest(ctx context.Context, tx storage.Tx, caseID string) (*CredentialRequest, error) {
	requestBytes, err := tx.Read(ctx, namespace, caseID)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	request, err := unmarshalRequest(requestBytes)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, framework.NewErrorf(framework.ErrNotFound, "no request for case<%s>", util.SanitizeLog(caseID))
	}
	return request, nil
}

func readIssued(ctx context.Context, tx storage.Tx, caseID string) (*IssuedCredential, error) {
	credentialBytes, err := tx.Read(ctx, issuedNamespace, caseID)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	if len(credentialBytes) == 0 {
		return nil, framework.NewErrorf(framework.ErrPersistenceFailure, "case<%s> is issued but has no stored credential", caseID)
	}
	var credential IssuedCredential
	if err = json.Unmarshal(credentialBytes, &credential); err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, errors.Wrap(err, "unmarshalling issued credential"))
	}
	return &credential, nil
}

func writeRequest(ctx context.Context, tx storage.Tx, request CredentialRequest) error {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return errors.Wrapf(err, "marshalling request for case<%s>", request.CaseID)
	}
	if err = tx.Write(ctx, namespace, request.CaseID, requestBytes); err != nil {
		return framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	return nil
}

func unmarshalRequest(requestBytes []byte) (*CredentialRequest, error) {
	if len(requestBytes) == 0 {
		return nil, nil
	}
	var request CredentialRequest
	if err := json.Unmarshal(requestBytes, &request); err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, errors.Wrap(err, "unmarshalling request"))
	}
	return &request, nil
}

// persistenceError marks errors that carry no kind, such as a failed commit, as persistence failures.
func persistenceError(err error) error {
	if err == nil {
		return nil
	}
	if framework.ErrorKind(err) == framework.KindUnknown {
		return framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	return err
}

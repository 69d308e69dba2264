package credentialrequest

import (
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
)

var transitions = map[Status]map[Status]bool{
	StatusPendingHolder: {
		StatusHolderReady: true,
		StatusRejected:    true,
	},
	StatusHolderReady: {
		// the holder may be re-bound until issuance
		StatusHolderReady: true,
		StatusIssued:      true,
		StatusRejected:    true,
	},
	StatusIssued: {
		StatusSharedWithVerifier: true,
		StatusVerified:           true,
	},
	StatusSharedWithVerifier: {
		StatusVerified: true,
	},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsExternalTransition reports whether to is a status set by callers outside the issuance flow.
func IsExternalTransition(to Status) bool {
	return to == StatusSharedWithVerifier || to == StatusVerified
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingHolder, StatusHolderReady, StatusIssued, StatusSharedWithVerifier, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// HasIssued reports whether a credential has been committed for a request in this status.
func (s Status) HasIssued() bool {
	switch s {
	case StatusIssued, StatusSharedWithVerifier, StatusVerified:
		return true
	}
	return false
}

func checkTransition(caseID string, from, to Status) error {
	if !CanTransition(from, to) {
		return framework.NewErrorf(framework.ErrInvalidState, "case<%s> cannot move from %s to %s", caseID, from, to)
	}
	return nil
}

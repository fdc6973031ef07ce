package wakeup

import (
	"fmt"
	"strings"
)

// IdentityVerificationError means identity resolution failed, the credential
// set was empty, or a credential failed cryptographic verification.
// Remediation is identity-side: re-issue credentials or re-register the DID.
type IdentityVerificationError struct {
	AgentDID string
	Trail    []string // accumulated diagnostics, in order of occurrence
}

func (e *IdentityVerificationError) Error() string {
	return fmt.Sprintf("wakeup: identity verification failed for %s: %s",
		e.AgentDID, strings.Join(e.Trail, "; "))
}

// SessionEstablishmentError means something downstream of successful identity
// verification failed: manifest collection, attestation signing, or session
// construction. Remediation is typically infrastructure-side.
type SessionEstablishmentError struct {
	AgentDID string
	Trail    []string
	Err      error
}

func (e *SessionEstablishmentError) Error() string {
	return fmt.Sprintf("wakeup: session establishment failed for %s: %v", e.AgentDID, e.Err)
}

func (e *SessionEstablishmentError) Unwrap() error { return e.Err }

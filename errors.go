// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"fmt"

	"github.com/canonical/go-tpm2"
)

// MalformedEventError is returned from DecodeVariableEvent if the event
// payload does not conform to the UEFI_VARIABLE_DATA layout.
type MalformedEventError struct {
	err error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed EFI_VARIABLE event data: %v", e.err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.err
}

// NoDigestForAlgorithmError is returned from Rehash if the log event does
// not record a digest for the requested algorithm, which means that the
// hashing strategy used by the firmware cannot be determined.
type NoDigestForAlgorithmError struct {
	Alg tpm2.HashAlgorithmId
}

func (e *NoDigestForAlgorithmError) Error() string {
	return fmt.Sprintf("event does not provide a digest for algorithm %v", e.Alg)
}

// VariableMissingError is returned from Rehash if the measured variable
// does not exist on the running system and the detected hashing strategy
// requires its current contents.
type VariableMissingError struct {
	Name string
}

func (e *VariableMissingError) Error() string {
	return fmt.Sprintf("EFI variable %s does not exist", e.Name)
}

// SignerUnavailableError is returned from the authority record lookup if
// the next-stage image carries no Authenticode signature from which a
// signing certificate can be extracted.
type SignerUnavailableError struct {
	err error
}

func (e *SignerUnavailableError) Error() string {
	return fmt.Sprintf("cannot extract signer from next-stage image: %v", e.err)
}

func (e *SignerUnavailableError) Unwrap() error {
	return e.err
}

// RecordNotFoundError is returned from the authority record lookup if the
// signature database contains no record bearing the certificate that
// authenticates the next-stage image.
type RecordNotFoundError struct {
	DB      string // logical database name ("db", "MokList" or "shim-vendor-cert")
	Subject string // subject of the signing certificate
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("signature database %s contains no record for signer %q", e.DB, e.Subject)
}

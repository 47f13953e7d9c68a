// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"context"
	"os"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/tcglog-parser"
)

const eventLogPath = "/sys/kernel/security/tpm0/binary_bios_measurements" // Path of the TCG event log for the default TPM, in binary form

// HostEnvironment is an interface that abstracts out an EFI environment,
// so that consumers of the API can provide a custom mechanism to read EFI
// variables or the TCG event log.
type HostEnvironment interface {
	// VarContext returns a context containing a VarsBackend, keyed by
	// efi.VarsBackendKey, for interacting with EFI variables via
	// go-efilib. This context can be passed to any go-efilib function
	// that interacts with EFI variables.
	VarContext(parent context.Context) context.Context

	// ReadEventLog reads the TCG event log
	ReadEventLog() (*tcglog.Log, error)
}

type defaultEnvImpl struct{}

// VarContext implements [HostEnvironment.VarContext].
func (defaultEnvImpl) VarContext(parent context.Context) context.Context {
	return efi.WithDefaultVarsBackend(parent)
}

// ReadEventLog implements [HostEnvironment.ReadEventLog].
func (defaultEnvImpl) ReadEventLog() (*tcglog.Log, error) {
	f, err := os.Open(eventLogPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return tcglog.ReadLog(f, &tcglog.LogOptions{})
}

// DefaultEnv is the environment of the machine this process is running
// on, reading variables through efivarfs and the event log from the
// default TPM's securityfs entry.
var DefaultEnv HostEnvironment = defaultEnvImpl{}

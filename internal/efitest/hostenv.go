// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efitest

import (
	"context"
	"errors"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/tcglog-parser"
)

// MockHostEnvironment provides a mock EFI host environment.
type MockHostEnvironment struct {
	Vars MockVars
	Log  *tcglog.Log
}

// NewMockHostEnvironment returns a new MockHostEnvironment.
func NewMockHostEnvironment(vars MockVars, log *tcglog.Log) *MockHostEnvironment {
	return &MockHostEnvironment{
		Vars: vars,
		Log:  log}
}

// VarContext implements [github.com/canonical/pcr-rehash.HostEnvironment.VarContext].
func (e *MockHostEnvironment) VarContext(parent context.Context) context.Context {
	return context.WithValue(parent, efi.VarsBackendKey{}, e.Vars)
}

// ReadEventLog implements [github.com/canonical/pcr-rehash.HostEnvironment.ReadEventLog].
func (e *MockHostEnvironment) ReadEventLog() (*tcglog.Log, error) {
	if e.Log == nil {
		return nil, errors.New("nil log")
	}
	return e.Log, nil
}

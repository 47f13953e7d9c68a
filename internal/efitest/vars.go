// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efitest

import (
	"bytes"
	"errors"
	"io"

	efi "github.com/canonical/go-efilib"

	. "gopkg.in/check.v1"
)

// VarEntry describes the contents of a mock EFI variable.
type VarEntry struct {
	Attrs   efi.VariableAttributes
	Payload []byte
}

type VarPayloadWriter interface {
	Write(w io.Writer) error
}

// MakeVarPayload returns a byte slice from the supplied VarPayloadWriter.
func MakeVarPayload(c *C, w VarPayloadWriter) []byte {
	buf := new(bytes.Buffer)
	c.Assert(w.Write(buf), IsNil)
	return buf.Bytes()
}

// MockVars is a collection of mock EFI variables.
type MockVars map[efi.VariableDescriptor]*VarEntry

// MakeMockVars creates a new MockVars.
func MakeMockVars() MockVars {
	return make(MockVars)
}

// Get implements [efi.VarsBackend.Get].
func (v MockVars) Get(name string, guid efi.GUID) (efi.VariableAttributes, []byte, error) {
	entry, found := v[efi.VariableDescriptor{Name: name, GUID: guid}]
	if !found {
		return 0, nil, efi.ErrVarNotExist
	}
	return entry.Attrs, entry.Payload, nil
}

// Set implements [efi.VarsBackend.Set].
func (v MockVars) Set(name string, guid efi.GUID, attrs efi.VariableAttributes, data []byte) error {
	return errors.New("not implemented")
}

// List implements [efi.VarsBackend.List].
func (v MockVars) List() ([]efi.VariableDescriptor, error) {
	return nil, errors.New("not implemented")
}

// AddVar adds the specified mock variable.
func (v MockVars) AddVar(name string, guid efi.GUID, attrs efi.VariableAttributes, data []byte) MockVars {
	v[efi.VariableDescriptor{Name: name, GUID: guid}] = &VarEntry{Attrs: attrs, Payload: data}
	return v
}

// SetDb sets the db image authentication variable.
func (v MockVars) SetDb(c *C, db efi.SignatureDatabase) MockVars {
	return v.AddVar("db", efi.ImageSecurityDatabaseGuid, efi.AttributeNonVolatile|efi.AttributeBootserviceAccess|efi.AttributeRuntimeAccess|efi.AttributeTimeBasedAuthenticatedWriteAccess, MakeVarPayload(c, db))
}

// SetMokListRT sets the MokListRT runtime mirror exposed by shim.
func (v MockVars) SetMokListRT(c *C, db efi.SignatureDatabase, shimGuid efi.GUID) MockVars {
	return v.AddVar("MokListRT", shimGuid, efi.AttributeBootserviceAccess|efi.AttributeRuntimeAccess, MakeVarPayload(c, db))
}

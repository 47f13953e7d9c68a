// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	efi "github.com/canonical/go-efilib"
)

// shimGuid is SHIM_LOCK_GUID, the vendor GUID under which the shim loader
// publishes its variables.
var shimGuid = efi.MakeGUID(0x605dab50, 0xe046, 0x4300, 0xabb6, [...]uint8{0x3d, 0xd8, 0x10, 0xdd, 0x8b, 0x23})

// shimRuntimeNames maps the names that shim measures to the runtime
// mirrors it publishes. Shim's boot-services-only variables (MokList and
// friends) cannot be read after ExitBootServices; shim instead provides
// volatile *RT copies of them, and those are the variables that the
// running system must consult when re-computing a measurement.
var shimRuntimeNames = map[string]string{
	"MokList":          "MokListRT",
	"MokListX":         "MokListXRT",
	"MokListTrusted":   "MokListTrustedRT",
	"MokSBState":       "MokSBStateRT",
	"SbatLevel":        "SbatLevelRT",
	"MokListRT":        "MokListRT",
	"MokListXRT":       "MokListXRT",
	"MokListTrustedRT": "MokListTrustedRT",
	"MokSBStateRT":     "MokSBStateRT",
	"SbatLevelRT":      "SbatLevelRT",
}

// shimAlias returns the runtime name for a shim managed variable, or
// ("", false) if the supplied name is not managed by shim.
func shimAlias(name string) (string, bool) {
	rtname, ok := shimRuntimeNames[name]
	return rtname, ok
}

// VariableDescriptor returns the identity of the variable to read from the
// running system when re-computing this event's measurement. For shim
// managed variables this is the runtime mirror under SHIM_LOCK_GUID
// rather than the measured name.
func (e *VariableEvent) VariableDescriptor() efi.VariableDescriptor {
	if rtname, ok := shimAlias(e.VariableName); ok {
		return efi.VariableDescriptor{Name: rtname, GUID: shimGuid}
	}
	return efi.VariableDescriptor{Name: e.VariableName, GUID: e.VariableGuid}
}

// FullVariableName returns the name-GUID form of the variable measured by
// the supplied event, honoring shim's runtime aliases. The returned string
// is suitable both as a key for reading the variable through efivarfs and
// as a diagnostic label.
func FullVariableName(e *VariableEvent) string {
	desc := e.VariableDescriptor()
	return desc.Name + "-" + desc.GUID.String()
}

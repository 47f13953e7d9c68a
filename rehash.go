// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

// Package rehash re-computes the digests of EFI variable measurements
// from a TCG event log against the current state of the system, in order
// to predict the PCR values of the next boot.
package rehash

import (
	"context"
	"fmt"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
)

// RehashContext carries the state shared by every event of a single
// prediction pass. The zero value of the optional fields selects the
// running system's environment.
type RehashContext struct {
	// Alg is the digest algorithm of the PCR bank being predicted.
	Alg tpm2.HashAlgorithmId

	// NextStageImage is the application that the measured boot chain
	// will load and verify next. It may be nil, eg, when the verified
	// boot service resides in an option ROM; EV_EFI_VARIABLE_AUTHORITY
	// events then reuse their recorded digests.
	NextStageImage Image

	// ShimImage is the shim binary of the boot chain, consulted for the
	// vendor certificate embedded in its .vendor_cert section. It is
	// only required to resolve authority events measured by shim against
	// its vendor certificate.
	ShimImage Image

	// Env supplies EFI variable reads and defaults to DefaultEnv.
	Env HostEnvironment

	// Context is the context for variable reads and defaults to
	// context.Background.
	Context context.Context

	// StrategyMismatch, if set, receives a diagnostic for every event
	// whose recorded digest matches neither hashing strategy.
	StrategyMismatch func(*StrategyMismatch)
}

func (c *RehashContext) varContext() context.Context {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	env := c.Env
	if env == nil {
		env = DefaultEnv
	}
	return env.VarContext(ctx)
}

// ReadEventLog reads the TCG event log from the context's environment,
// falling back to [DefaultEnv] when no environment is set.
func (c *RehashContext) ReadEventLog() (*tcglog.Log, error) {
	env := c.Env
	if env == nil {
		env = DefaultEnv
	}
	return env.ReadEventLog()
}

// readVariable returns the current contents of the described variable, or
// nil if it does not exist on the running system.
func (c *RehashContext) readVariable(desc efi.VariableDescriptor) ([]byte, error) {
	data, _, err := efi.ReadVariable(c.varContext(), desc.Name, desc.GUID)
	switch {
	case err == efi.ErrVarNotExist:
		return nil, nil
	case err != nil:
		return nil, err
	}
	return data, nil
}

// Rehash computes the digest that the supplied EFI variable measurement
// will produce on the next boot, given the variable contents of the
// running system. The supplied event must be of type
// EV_EFI_VARIABLE_DRIVER_CONFIG or EV_EFI_VARIABLE_AUTHORITY and parsed
// must be its decoded payload.
//
// For authority events without a next-stage image in the context, the
// digest recorded in the log is returned unchanged.
func Rehash(ev *tcglog.Event, parsed *VariableEvent, c *RehashContext) (tpm2.Digest, error) {
	name := FullVariableName(parsed)

	strategy, mismatch, err := detectHashStrategy(ev, parsed, c.Alg)
	if err != nil {
		return nil, err
	}
	if mismatch != nil && c.StrategyMismatch != nil {
		c.StrategyMismatch(mismatch)
	}

	var current []byte
	if ev.EventType == tcglog.EventTypeEFIVariableAuthority {
		// Verification events don't contain the entire signature
		// database - only the record used to authenticate the next
		// application.
		record, err := c.locateAuthorityRecord(parsed)
		if err != nil {
			return nil, err
		}
		if record.noImage {
			return ev.Digests[c.Alg], nil
		}
		current = record.data
	} else {
		data, err := c.readVariable(parsed.VariableDescriptor())
		if err != nil {
			return nil, err
		}
		current = data
	}

	if current == nil {
		return nil, &VariableMissingError{Name: name}
	}

	h := c.Alg.NewHash()
	switch strategy {
	case HashWholeEvent:
		if err := parsed.Write(h, current); err != nil {
			// The codec produced a structure inconsistent with what it
			// parsed; nothing sensible can be predicted from here.
			panic(fmt.Sprintf("cannot re-marshal event for EFI variable %s: %v", name, err))
		}
	case HashDataOnly:
		h.Write(current)
	}
	return h.Sum(nil), nil
}

// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"bytes"
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
)

// HashStrategy describes what a firmware implementation hashed when it
// measured an EFI variable.
type HashStrategy int

const (
	// HashWholeEvent indicates that the firmware hashed the entire
	// marshalled UEFI_VARIABLE_DATA structure.
	HashWholeEvent HashStrategy = iota

	// HashDataOnly indicates that the firmware hashed only the variable
	// data.
	HashDataOnly
)

func (s HashStrategy) String() string {
	switch s {
	case HashWholeEvent:
		return "whole-event"
	case HashDataOnly:
		return "data-only"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// StrategyMismatch describes an event whose recorded digest matches
// neither hashing strategy. It carries both candidate digests so that the
// divergence from the log can be inspected.
type StrategyMismatch struct {
	Event            *tcglog.Event
	Alg              tpm2.HashAlgorithmId
	Recorded         tpm2.Digest
	WholeEventDigest []byte
	DataDigest       []byte
}

func (m *StrategyMismatch) String() string {
	return fmt.Sprintf("recorded %v digest %x for %v event matches neither the whole event (%x) nor the variable data (%x)",
		m.Alg, m.Recorded, m.Event.EventType, m.WholeEventDigest, m.DataDigest)
}

// detectHashStrategy works out what the firmware hashed when it produced
// the recorded digest. UEFI implementations differ here: some firmwares
// hash the entire UEFI_VARIABLE_DATA structure for every variable event,
// whilst OVMF hashes the structure for EV_EFI_VARIABLE_DRIVER_CONFIG
// events and just the variable data for other variable events. The log
// contains the answer, so try both.
//
// If neither digest matches, the firmware used a scheme we don't know
// about. The data-only strategy is assumed in that case, which makes the
// divergence visible to the caller as a predicted digest that disagrees
// with the log; the returned StrategyMismatch carries both candidates.
func detectHashStrategy(ev *tcglog.Event, parsed *VariableEvent, alg tpm2.HashAlgorithmId) (HashStrategy, *StrategyMismatch, error) {
	recorded, ok := ev.Digests[alg]
	if !ok {
		return 0, nil, &NoDigestForAlgorithmError{Alg: alg}
	}

	h := alg.NewHash()
	h.Write(ev.Data.Bytes())
	eventDigest := h.Sum(nil)
	if bytes.Equal(recorded, eventDigest) {
		return HashWholeEvent, nil, nil
	}

	h = alg.NewHash()
	h.Write(parsed.Data)
	dataDigest := h.Sum(nil)
	if bytes.Equal(recorded, dataDigest) {
		return HashDataOnly, nil, nil
	}

	mismatch := &StrategyMismatch{
		Event:            ev,
		Alg:              alg,
		Recorded:         recorded,
		WholeEventDigest: eventDigest,
		DataDigest:       dataDigest}
	return HashDataOnly, mismatch, nil
}

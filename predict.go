// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
	"golang.org/x/xerrors"
)

// IsVariableEvent indicates whether the supplied event is an EFI variable
// measurement that can be re-computed from the current system state.
func IsVariableEvent(ev *tcglog.Event) bool {
	switch ev.EventType {
	case tcglog.EventTypeEFIVariableDriverConfig, tcglog.EventTypeEFIVariableAuthority:
		return true
	default:
		return false
	}
}

// PredictedDigest returns the digest that the supplied event will extend
// on the next boot. EFI variable measurements are re-computed from the
// current system state via Rehash; every other event type is assumed
// immutable and its recorded digest is reused.
func PredictedDigest(ev *tcglog.Event, c *RehashContext) (tpm2.Digest, error) {
	if !IsVariableEvent(ev) {
		digest, ok := ev.Digests[c.Alg]
		if !ok {
			return nil, &NoDigestForAlgorithmError{Alg: c.Alg}
		}
		return digest, nil
	}

	parsed, err := DecodeVariableEvent(ev.Data.Bytes())
	if err != nil {
		return nil, err
	}
	return Rehash(ev, parsed, c)
}

// PredictPCR computes the value that the specified PCR will hold after the
// next boot, by replaying the supplied log in order and extending the
// predicted digest of each event. Events measured to other PCRs are
// skipped, and EV_NO_ACTION events are not extended.
func PredictPCR(log *tcglog.Log, pcr tpm2.Handle, c *RehashContext) (tpm2.Digest, error) {
	if !log.Algorithms.Contains(c.Alg) {
		return nil, fmt.Errorf("the log does not contain entries for the %v digest algorithm", c.Alg)
	}

	value := make(tpm2.Digest, c.Alg.Size())
	for i, ev := range log.Events {
		if ev.PCRIndex != pcr || ev.EventType == tcglog.EventTypeNoAction {
			continue
		}

		digest, err := PredictedDigest(ev, c)
		if err != nil {
			return nil, xerrors.Errorf("cannot predict digest for event %d (%v): %w", i, ev.EventType, err)
		}

		h := c.Alg.NewHash()
		h.Write(value)
		h.Write(digest)
		value = h.Sum(nil)
	}

	return value, nil
}

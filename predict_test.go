// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash_test

import (
	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"

	. "gopkg.in/check.v1"

	. "github.com/canonical/pcr-rehash"
	"github.com/canonical/pcr-rehash/internal/efitest"
)

type predictSuite struct{}

var _ = Suite(&predictSuite{})

func makeOpaqueEvent(pcr tpm2.Handle, eventType tcglog.EventType, data []byte, alg tpm2.HashAlgorithmId) *tcglog.Event {
	return &tcglog.Event{
		PCRIndex:  pcr,
		EventType: eventType,
		Digests:   tcglog.DigestMap{alg: hash(alg, data)},
		Data:      tcglog.OpaqueEventData(data)}
}

func extend(alg tpm2.HashAlgorithmId, value, digest []byte) []byte {
	h := alg.NewHash()
	h.Write(value)
	h.Write(digest)
	return h.Sum(nil)
}

func (s *predictSuite) TestIsVariableEvent(c *C) {
	alg := tpm2.HashAlgorithmSHA256
	c.Check(IsVariableEvent(makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig, efi.GlobalVariable, "SecureBoot", []byte{0x01}, alg, HashWholeEvent)), Equals, true)
	c.Check(IsVariableEvent(makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableAuthority, efi.ImageSecurityDatabaseGuid, "db", []byte{0x01}, alg, HashDataOnly)), Equals, true)
	c.Check(IsVariableEvent(makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, alg)), Equals, false)
	c.Check(IsVariableEvent(makeVariableEvent(c, 1, tcglog.EventTypeEFIVariableBoot, efi.GlobalVariable, "BootOrder", []byte{0x01}, alg, HashWholeEvent)), Equals, false)
}

func (s *predictSuite) TestPredictedDigestNonVariableEvent(c *C) {
	ev := makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, tpm2.HashAlgorithmSHA256)

	digest, err := PredictedDigest(ev, &RehashContext{Alg: tpm2.HashAlgorithmSHA256})
	c.Assert(err, IsNil)
	c.Check(digest, DeepEquals, ev.Digests[tpm2.HashAlgorithmSHA256])
}

func (s *predictSuite) TestPredictedDigestNoDigest(c *C) {
	ev := makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, tpm2.HashAlgorithmSHA256)

	_, err := PredictedDigest(ev, &RehashContext{Alg: tpm2.HashAlgorithmSHA384})
	c.Check(err, FitsTypeOf, &NoDigestForAlgorithmError{})
}

func (s *predictSuite) TestPredictPCR(c *C) {
	alg := tpm2.HashAlgorithmSHA256

	events := []*tcglog.Event{
		makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
			efi.GlobalVariable, "SecureBoot", []byte{0x00}, alg, HashWholeEvent),
		makeOpaqueEvent(4, tcglog.EventTypeEFIAction, []byte("Calling EFI Application from Boot Option"), alg),
		makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, alg),
	}
	log := tcglog.NewLogForTesting(events)

	// SecureBoot has been turned on since the log was recorded.
	vars := efitest.MakeMockVars().AddVar("SecureBoot", efi.GlobalVariable,
		efi.AttributeBootserviceAccess|efi.AttributeRuntimeAccess, []byte{0x01})

	ctx := &RehashContext{
		Alg: alg,
		Env: efitest.NewMockHostEnvironment(vars, nil)}

	value, err := PredictPCR(log, 7, ctx)
	c.Assert(err, IsNil)

	rehashed := hash(alg, (&tcglog.EFIVariableData{
		VariableName: efi.GlobalVariable,
		UnicodeName:  "SecureBoot",
		VariableData: []byte{0x01}}).Bytes())

	expected := make([]byte, alg.Size())
	expected = extend(alg, expected, rehashed)
	expected = extend(alg, expected, hash(alg, []byte{0x00, 0x00, 0x00, 0x00}))
	c.Check([]byte(value), DeepEquals, expected)
}

func (s *predictSuite) TestPredictPCRUnchangedState(c *C) {
	// When nothing has changed, the prediction replays the recorded
	// digests and matches what a replay of the log itself produces.
	alg := tpm2.HashAlgorithmSHA256

	events := []*tcglog.Event{
		makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
			efi.GlobalVariable, "SecureBoot", []byte{0x01}, alg, HashWholeEvent),
		makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, alg),
	}
	log := tcglog.NewLogForTesting(events)

	vars := efitest.MakeMockVars().AddVar("SecureBoot", efi.GlobalVariable,
		efi.AttributeBootserviceAccess|efi.AttributeRuntimeAccess, []byte{0x01})

	ctx := &RehashContext{
		Alg: alg,
		Env: efitest.NewMockHostEnvironment(vars, nil)}

	value, err := PredictPCR(log, 7, ctx)
	c.Assert(err, IsNil)

	expected := make([]byte, alg.Size())
	for _, ev := range events {
		expected = extend(alg, expected, ev.Digests[alg])
	}
	c.Check([]byte(value), DeepEquals, expected)
}

func (s *predictSuite) TestPredictPCRUnknownAlgorithm(c *C) {
	alg := tpm2.HashAlgorithmSHA256
	log := tcglog.NewLogForTesting([]*tcglog.Event{
		makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, alg)})

	_, err := PredictPCR(log, 7, &RehashContext{Alg: tpm2.HashAlgorithmSHA384})
	c.Check(err, ErrorMatches, "the log does not contain entries for the .* digest algorithm")
}

func (s *predictSuite) TestPredictPCRPropagatesRehashError(c *C) {
	alg := tpm2.HashAlgorithmSHA256
	log := tcglog.NewLogForTesting([]*tcglog.Event{
		makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
			efi.GlobalVariable, "SecureBoot", []byte{0x00}, alg, HashWholeEvent)})

	ctx := &RehashContext{
		Alg: alg,
		Env: efitest.NewMockHostEnvironment(efitest.MakeMockVars(), nil)}

	_, err := PredictPCR(log, 7, ctx)
	c.Check(err, ErrorMatches, `cannot predict digest for event 0 \(.*\): EFI variable SecureBoot-8be4df61-93ca-11d2-aa0d-00e098032b8c does not exist`)
}

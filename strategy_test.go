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
)

type strategySuite struct{}

var _ = Suite(&strategySuite{})

func (s *strategySuite) TestDetectWholeEvent(c *C) {
	ev := makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
		efi.GlobalVariable, "SecureBoot", []byte{0x01}, tpm2.HashAlgorithmSHA256, HashWholeEvent)

	strategy, mismatch, err := DetectHashStrategy(ev, decodeEvent(c, ev), tpm2.HashAlgorithmSHA256)
	c.Assert(err, IsNil)
	c.Check(strategy, Equals, HashWholeEvent)
	c.Check(mismatch, IsNil)
}

func (s *strategySuite) TestDetectDataOnly(c *C) {
	ev := makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableAuthority,
		efi.ImageSecurityDatabaseGuid, "db", decodeHexString(c, "0102030405"), tpm2.HashAlgorithmSHA256, HashDataOnly)

	strategy, mismatch, err := DetectHashStrategy(ev, decodeEvent(c, ev), tpm2.HashAlgorithmSHA256)
	c.Assert(err, IsNil)
	c.Check(strategy, Equals, HashDataOnly)
	c.Check(mismatch, IsNil)
}

func (s *strategySuite) TestDetectPerEvent(c *C) {
	// Strategy detection is per event, not per log - a log can mix
	// firmware components that hash differently.
	ev1 := makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
		efi.GlobalVariable, "SecureBoot", []byte{0x01}, tpm2.HashAlgorithmSHA256, HashWholeEvent)
	ev2 := makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableAuthority,
		efi.ImageSecurityDatabaseGuid, "db", decodeHexString(c, "0102030405"), tpm2.HashAlgorithmSHA256, HashDataOnly)

	strategy1, _, err := DetectHashStrategy(ev1, decodeEvent(c, ev1), tpm2.HashAlgorithmSHA256)
	c.Assert(err, IsNil)
	strategy2, _, err := DetectHashStrategy(ev2, decodeEvent(c, ev2), tpm2.HashAlgorithmSHA256)
	c.Assert(err, IsNil)

	c.Check(strategy1, Equals, HashWholeEvent)
	c.Check(strategy2, Equals, HashDataOnly)
}

func (s *strategySuite) TestDetectMismatch(c *C) {
	ev := makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
		efi.GlobalVariable, "SecureBoot", []byte{0x01}, tpm2.HashAlgorithmSHA256, HashWholeEvent)
	ev.Digests[tpm2.HashAlgorithmSHA256] = decodeHexString(c, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")

	strategy, mismatch, err := DetectHashStrategy(ev, decodeEvent(c, ev), tpm2.HashAlgorithmSHA256)
	c.Assert(err, IsNil)
	c.Check(strategy, Equals, HashDataOnly)
	c.Assert(mismatch, NotNil)
	c.Check(mismatch.Recorded, DeepEquals, ev.Digests[tpm2.HashAlgorithmSHA256])
	c.Check([]byte(mismatch.WholeEventDigest), DeepEquals, hash(tpm2.HashAlgorithmSHA256, ev.Data.Bytes()))
	c.Check([]byte(mismatch.DataDigest), DeepEquals, hash(tpm2.HashAlgorithmSHA256, []byte{0x01}))
	c.Check(mismatch.String(), Matches, "recorded .* digest deadbeef.* event matches neither the whole event .*")
}

func (s *strategySuite) TestDetectNoDigest(c *C) {
	ev := makeVariableEvent(c, 7, tcglog.EventTypeEFIVariableDriverConfig,
		efi.GlobalVariable, "SecureBoot", []byte{0x01}, tpm2.HashAlgorithmSHA256, HashWholeEvent)

	_, _, err := DetectHashStrategy(ev, decodeEvent(c, ev), tpm2.HashAlgorithmSHA512)
	c.Check(err, FitsTypeOf, &NoDigestForAlgorithmError{})
}

func (s *strategySuite) TestHashStrategyString(c *C) {
	c.Check(HashWholeEvent.String(), Equals, "whole-event")
	c.Check(HashDataOnly.String(), Equals, "data-only")
}

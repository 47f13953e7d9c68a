// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash_test

import (
	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"

	. "gopkg.in/check.v1"

	. "github.com/canonical/pcr-rehash"
	"github.com/canonical/pcr-rehash/internal/efitest"
)

type envSuite struct{}

var _ = Suite(&envSuite{})

func (s *envSuite) TestReadEventLogFromEnvironment(c *C) {
	log := tcglog.NewLogForTesting([]*tcglog.Event{
		makeOpaqueEvent(7, tcglog.EventTypeSeparator, []byte{0x00, 0x00, 0x00, 0x00}, tpm2.HashAlgorithmSHA256)})

	ctx := &RehashContext{
		Alg: tpm2.HashAlgorithmSHA256,
		Env: efitest.NewMockHostEnvironment(nil, log)}

	got, err := ctx.ReadEventLog()
	c.Check(err, IsNil)
	c.Check(got, Equals, log)
}

func (s *envSuite) TestReadEventLogError(c *C) {
	ctx := &RehashContext{
		Alg: tpm2.HashAlgorithmSHA256,
		Env: efitest.NewMockHostEnvironment(nil, nil)}

	_, err := ctx.ReadEventLog()
	c.Check(err, ErrorMatches, "nil log")
}

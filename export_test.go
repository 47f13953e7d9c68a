// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"crypto/x509"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
)

func DetectHashStrategy(ev *tcglog.Event, parsed *VariableEvent, alg tpm2.HashAlgorithmId) (HashStrategy, *StrategyMismatch, error) {
	return detectHashStrategy(ev, parsed, alg)
}

func ShimAlias(name string) (string, bool) {
	return shimAlias(name)
}

func ImageSigner(image Image) (*x509.Certificate, error) {
	return imageSigner(image)
}

func ShimVendorDB(image Image) (efi.SignatureDatabase, error) {
	return shimVendorDB(image)
}

func MockImageSigner(fn func(Image) (*x509.Certificate, error)) (restore func()) {
	orig := imageSigner
	imageSigner = fn
	return func() {
		imageSigner = orig
	}
}

func MockShimVendorDB(fn func(Image) (efi.SignatureDatabase, error)) (restore func()) {
	orig := shimVendorDB
	shimVendorDB = fn
	return func() {
		shimVendorDB = orig
	}
}

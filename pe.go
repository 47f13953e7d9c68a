// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"bytes"
	"crypto/x509"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	efi "github.com/canonical/go-efilib"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/xerrors"
)

const (
	certTableIndex = 4 // Index of the Certificate Table entry in the Data Directory of a PE image optional header
)

// secureBootSignaturesFromPEFile returns the Authenticode signatures from
// the certificate table of the supplied PE image.
func secureBootSignaturesFromPEFile(pefile *pe.File, r ImageReader) ([]*efi.WinCertificateAuthenticode, error) {
	// Obtain security directory entry from optional header
	var dd []pe.DataDirectory
	switch oh := pefile.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dd = oh.DataDirectory[0:oh.NumberOfRvaAndSizes]
	case *pe.OptionalHeader64:
		dd = oh.DataDirectory[0:oh.NumberOfRvaAndSizes]
	default:
		return nil, errors.New("cannot obtain security directory entry: no optional header")
	}

	if len(dd) <= certTableIndex {
		// This image doesn't include a certificate table entry, so has no signatures.
		return nil, nil
	}

	// Create a reader for the security directory entry, which points to one or
	// more WIN_CERTIFICATE structs. Note that the directory entry address is a
	// file offset rather than a virtual address.
	certReader := io.NewSectionReader(
		r,
		int64(dd[certTableIndex].VirtualAddress),
		int64(dd[certTableIndex].Size))

	// Binaries can have multiple signers - this is achieved using multiple
	// single-signed Authenticode signatures - see section 32.5.3.3 ("Secure Boot
	// and Driver Signing - UEFI Image Validation - Signature Database Update -
	// Authorization Process") of the UEFI Specification, version 2.8.
	var sigs []*efi.WinCertificateAuthenticode

SignatureLoop:
	for i := 0; ; i++ {
		// Signatures in this section are 8-byte aligned - see the PE spec:
		// https://docs.microsoft.com/en-us/windows/win32/debug/pe-format#the-attribute-certificate-table-image-only
		off, _ := certReader.Seek(0, io.SeekCurrent)
		alignSize := (8 - (off & 7)) % 8
		certReader.Seek(alignSize, io.SeekCurrent)

		c, err := efi.ReadWinCertificate(certReader)
		switch {
		case xerrors.Is(err, io.EOF):
			break SignatureLoop
		case err != nil:
			return nil, xerrors.Errorf("cannot decode WIN_CERTIFICATE from security directory entry %d: %w", i, err)
		}

		sig, ok := c.(*efi.WinCertificateAuthenticode)
		if !ok {
			return nil, fmt.Errorf("unexpected WIN_CERTIFICATE type from security directory entry %d: not an Authenticode signature", i)
		}

		sigs = append(sigs, sig)
	}

	return sigs, nil
}

// imageSigner extracts the certificate that signs the supplied image. When
// an image carries multiple signatures, the first one wins - that matches
// the order in which shim and the firmware test signatures during
// verification.
var imageSigner = func(image Image) (*x509.Certificate, error) {
	r, err := image.Open()
	if err != nil {
		return nil, xerrors.Errorf("cannot open image: %w", err)
	}
	defer r.Close()

	pefile, err := pe.NewFile(r)
	if err != nil {
		return nil, xerrors.Errorf("cannot decode image: %w", err)
	}

	sigs, err := secureBootSignaturesFromPEFile(pefile, r)
	if err != nil {
		return nil, &SignerUnavailableError{err: err}
	}
	if len(sigs) == 0 {
		return nil, &SignerUnavailableError{err: errors.New("no secure boot signatures")}
	}

	signer := sigs[0].GetSigner()
	if signer == nil {
		return nil, &SignerUnavailableError{err: errors.New("signature has no signing certificate")}
	}
	return signer, nil
}

type shimVendorCertTable struct {
	DbSize    uint32
	DbxSize   uint32
	DbOffset  uint32
	DbxOffset uint32
}

// shimVendorDB returns the vendor certificate database embedded in the
// supplied shim binary. Shim's .vendor_cert section starts with a
// cert_table struct (see shim.c in the shim source) and the authorized
// payload it points to is either a bare X.509 certificate or one or more
// ESLs.
var shimVendorDB = func(image Image) (efi.SignatureDatabase, error) {
	r, err := image.Open()
	if err != nil {
		return nil, xerrors.Errorf("cannot open image: %w", err)
	}
	defer r.Close()

	pefile, err := pe.NewFile(r)
	if err != nil {
		return nil, xerrors.Errorf("cannot decode image: %w", err)
	}

	section := pefile.Section(".vendor_cert")
	if section == nil {
		return nil, errors.New("no .vendor_cert section")
	}

	var table shimVendorCertTable
	if err := binary.Read(section.Open(), binary.LittleEndian, &table); err != nil {
		return nil, xerrors.Errorf("cannot read vendor certs table: %w", err)
	}

	// A size of zero is valid
	if table.DbSize == 0 {
		return nil, nil
	}

	sr := io.NewSectionReader(section, int64(table.DbOffset), int64(table.DbSize))
	dbData, err := io.ReadAll(sr)
	if err != nil {
		return nil, xerrors.Errorf("cannot read vendor db data: %w", err)
	}

	elem := cryptobyte.String(dbData)
	if elem.ReadASN1Element(&elem, cryptobyte_asn1.SEQUENCE) && len(elem) == len(dbData) {
		// The vendor DB data contains a single X.509 certificate
		return efi.SignatureDatabase{
			{
				Type:       efi.CertX509Guid,
				Signatures: []*efi.SignatureData{{Data: dbData}},
			},
		}, nil
	}

	// The vendor DB data contains one or more ESLs
	return efi.ReadSignatureDatabase(bytes.NewReader(dbData))
}

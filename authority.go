// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"bytes"
	"crypto/x509"
	"errors"

	efi "github.com/canonical/go-efilib"
	"golang.org/x/xerrors"
)

// authorityDatabases maps the variable names that appear in
// EV_EFI_VARIABLE_AUTHORITY events to the logical signature database that
// the verification record comes from.
var authorityDatabases = map[string]string{
	"db":        "db",
	"MokListRT": "MokList",
	"Shim":      "shim-vendor-cert",
}

// authorityRecord is the result of locating the database record that will
// be measured when the next-stage application is verified. Exactly one of
// the following holds:
//   - data contains the record in its on-database wire form;
//   - data is nil because the measured variable does not exist on the
//     running system;
//   - noImage is set because no next-stage image is available, in which
//     case the recorded digest is reused.
type authorityRecord struct {
	data    []byte
	noImage bool
}

// signatureDatabase loads the contents of the named logical database.
func (c *RehashContext) signatureDatabase(dbName string) (efi.SignatureDatabase, error) {
	switch dbName {
	case "db":
		return c.readSignatureDatabase(efi.VariableDescriptor{Name: "db", GUID: efi.ImageSecurityDatabaseGuid})
	case "MokList":
		// MokList is boot-services-only; read shim's runtime mirror.
		return c.readSignatureDatabase(efi.VariableDescriptor{Name: "MokListRT", GUID: shimGuid})
	case "shim-vendor-cert":
		if c.ShimImage == nil {
			return nil, errors.New("no shim image supplied")
		}
		return shimVendorDB(c.ShimImage)
	default:
		return nil, xerrors.Errorf("unrecognized signature database %s", dbName)
	}
}

func (c *RehashContext) readSignatureDatabase(desc efi.VariableDescriptor) (efi.SignatureDatabase, error) {
	data, err := c.readVariable(desc)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &VariableMissingError{Name: desc.Name + "-" + desc.GUID.String()}
	}
	return efi.ReadSignatureDatabase(bytes.NewReader(data))
}

// certMatchesSigner determines whether a database record bearing the
// supplied certificate will match the signer during verification. Records
// are matched by subject and issuer, with a byte comparison as a shortcut
// when the record carries the identical certificate.
func certMatchesSigner(data []byte, signer *x509.Certificate) bool {
	if bytes.Equal(data, signer.Raw) {
		return true
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return false
	}
	return bytes.Equal(cert.RawSubject, signer.RawSubject) && bytes.Equal(cert.RawIssuer, signer.RawIssuer)
}

// locateAuthorityRecord maps an EV_EFI_VARIABLE_AUTHORITY event to the
// data that the firmware will measure on the next boot. Verification
// events don't contain the entire database - only the record that was
// used to authenticate the application's Authenticode signature, framed
// as it sits in the database (EFI_SIGNATURE_LIST header, owner GUID,
// certificate).
func (c *RehashContext) locateAuthorityRecord(parsed *VariableEvent) (*authorityRecord, error) {
	dbName, isDb := authorityDatabases[parsed.VariableName]
	if !isDb {
		// Not a signature database (this could be SbatLevel, or some
		// other variable) - the current contents are measured as-is.
		data, err := c.readVariable(parsed.VariableDescriptor())
		if err != nil {
			return nil, err
		}
		return &authorityRecord{data: data}, nil
	}

	if c.NextStageImage == nil {
		// The application being verified might be an EFI binary residing
		// in device ROM. OVMF, for example, does that, and the DevicePath
		// it uses is PNP0A03/PCI(2.0)/PCI(0)/OffsetRange(...). Such an
		// image cannot be changed from the running system.
		return &authorityRecord{noImage: true}, nil
	}

	signer, err := imageSigner(c.NextStageImage)
	if err != nil {
		return nil, err
	}

	db, err := c.signatureDatabase(dbName)
	if err != nil {
		return nil, xerrors.Errorf("cannot load signature database %s: %w", dbName, err)
	}

	for _, list := range db {
		if list.Type != efi.CertX509Guid {
			continue
		}
		for _, sig := range list.Signatures {
			if !certMatchesSigner(sig.Data, signer) {
				continue
			}

			record := &efi.SignatureList{
				Type:       list.Type,
				Header:     list.Header,
				Signatures: []*efi.SignatureData{sig}}
			w := new(bytes.Buffer)
			if err := record.Write(w); err != nil {
				return nil, xerrors.Errorf("cannot encode authority record: %w", err)
			}
			return &authorityRecord{data: w.Bytes()}, nil
		}
	}

	return nil, &RecordNotFoundError{DB: dbName, Subject: signer.Subject.String()}
}

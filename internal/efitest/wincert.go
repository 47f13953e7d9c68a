// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efitest

import (
	"bytes"
	"crypto"
	"crypto/rand"
	_ "crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/binary"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	. "gopkg.in/check.v1"

	efi "github.com/canonical/go-efilib"
)

var (
	oidContentType     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidSignedData      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidSHA256          = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidRSAEncryption   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidSpcIndirectData = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
	oidSpcPeImageData  = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}
)

type winCertificateHdr struct {
	Length          uint32
	Revision        uint16
	CertificateType uint16
}

func generatePKCS7SignedData(c *C, signer *x509.Certificate, content, authAttrs, sig []byte) []byte {
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ContentInfo ::= SEQUENCE
		b.AddASN1ObjectIdentifier(oidSignedData)                                                        // contentType ContentType
		b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) { // content [0] EXPLICIT DEFINED BY contentType OPTIONAL
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SignedData ::= SEQUENCE
				b.AddASN1Int64(1)                                            // version Version
				b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) { // digestAlgorithms DigestAlgorithmIdentifiers
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // AlgorithmIdentifier ::= SEQUENCE
						b.AddASN1ObjectIdentifier(oidSHA256) // algorithm OBJECT IDENTIFIER
						b.AddASN1NULL()                      // parameters ANY DEFINED BY algorithm OPTIONAL
					})
				})
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // contentInfo ContentInfo
					b.AddASN1ObjectIdentifier(oidSpcIndirectData)                                                   // contentType ContentType
					b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) { // content [0] EXPLICIT DEFINED BY contentType OPTIONAL
						b.AddBytes(content)
					})
				})
				b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) { // certificates [0] IMPLICIT ExtendedCertificatesAndCertificates OPTIONAL
					b.AddBytes(signer.Raw)
				})
				b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) { // signerInfos SignerInfos
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SignerInfo ::= SEQUENCE
						b.AddASN1Int64(1)                                                 // version Version
						b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // issuerAndSerialNumber IssuerAndSerialNumber
							b.AddBytes(signer.RawIssuer)
							b.AddASN1BigInt(signer.SerialNumber)
						})
						b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // digestAlgorithm DigestAlgorithmIdentifier
							b.AddASN1ObjectIdentifier(oidSHA256)
							b.AddASN1NULL()
						})
						b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) { // authenticatedAttributes [0] IMPLICIT Attributes OPTIONAL
							attrsOuter := cryptobyte.String(authAttrs)
							var attrsInner cryptobyte.String
							attrsOuter.ReadASN1(&attrsInner, cryptobyte_asn1.SET)
							b.AddBytes(attrsInner)
						})
						b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // digestEncryptionAlgorithm DigestEncryptionAlgorithmIdentifier
							b.AddASN1ObjectIdentifier(oidRSAEncryption)
							b.AddASN1NULL()
						})
						b.AddASN1OctetString(sig) // encryptedDigest EncryptedDigest
					})
				})
			})
		})
	})

	pk7, err := b.Bytes()
	c.Assert(err, IsNil)

	return pk7
}

// GenerateWinCertificateAuthenticode generates a mock Authenticode
// signature for an image with the specified SHA-256 digest, signed by the
// supplied key, in the WIN_CERTIFICATE framing it has inside a PE
// certificate table.
func GenerateWinCertificateAuthenticode(c *C, key crypto.Signer, signer *x509.Certificate, imageDigest []byte) []byte {
	// Create the content (SpcIndirectDataContent, as described in
	// Microsoft's Authenticode spec).
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SpcIndirectDataContent ::= SEQUENCE
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // data SpcAttributeTypeAndOptionalValue
			b.AddASN1ObjectIdentifier(oidSpcPeImageData)                      // type OBJECT IDENTIFIER
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // value ANY DEFINED BY type OPTIONAL
				b.AddASN1BitString([]byte{0})                                                                   // flags SpcPeImageFlags DEFAULT { includeResources }
				b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) { // file SpcLink [0] EXPLICIT
					b.AddASN1(cryptobyte_asn1.Tag(2).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) { // file [2] EXPLICIT SpcString
						b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) { // unicode [0] IMPLICIT BMPSTRING
							str := new(bytes.Buffer)
							binary.Write(str, binary.LittleEndian, efi.ConvertUTF8ToUCS2("<<<Obsolete>>>"))
							b.AddBytes(str.Bytes())
						})
					})
				})
			})
		})
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // messageDigest digestInfo
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // digestAlgorithm AlgorithmIdentifier
				b.AddASN1ObjectIdentifier(oidSHA256)
			})
			b.AddASN1OctetString(imageDigest) // digest OCTETSTRING
		})
	})
	content, err := b.Bytes()
	c.Assert(err, IsNil)

	h := crypto.SHA256.New()
	h.Write(content)

	// Create the authenticated attributes
	b = cryptobyte.NewBuilder(nil)
	b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) { // Attributes := SET OF Attribute
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidContentType)
			b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidSpcIndirectData)
			})
		})
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidMessageDigest)
			b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(h.Sum(nil))
			})
		})
	})
	attrs, err := b.Bytes()
	c.Assert(err, IsNil)

	h = crypto.SHA256.New()
	h.Write(attrs)

	sig, err := key.Sign(rand.Reader, h.Sum(nil), crypto.SHA256)
	c.Assert(err, IsNil)

	pk7 := generatePKCS7SignedData(c, signer, content, attrs, sig)

	blob := new(bytes.Buffer)
	binary.Write(blob, binary.LittleEndian, winCertificateHdr{
		Length:          uint32(binary.Size(winCertificateHdr{}) + len(pk7)),
		Revision:        0x0200,
		CertificateType: 0x0002, // WIN_CERT_TYPE_PKCS_SIGNED_DATA
	})
	blob.Write(pk7)
	return blob.Bytes()
}

// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efitest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"

	. "gopkg.in/check.v1"
)

// PESection describes one section of a mock PE image.
type PESection struct {
	Name string
	Data []byte
}

func align8(n int) int {
	return (n + 7) &^ 7
}

func pad8(w *bytes.Buffer) {
	for w.Len()%8 != 0 {
		w.WriteByte(0)
	}
}

// MakePEImage creates a minimal PE32+ image containing the supplied
// sections and, if certTable is not empty, a security directory entry
// pointing at it. Section names longer than 8 characters go via the COFF
// string table, as they do in binaries produced by binutils.
func MakePEImage(c *C, sections []PESection, certTable []byte) []byte {
	const dosHeaderSize = 0x40
	fileHeaderOffset := dosHeaderSize + 4
	optHeaderSize := binary.Size(pe.OptionalHeader64{})
	sectionHeadersOffset := fileHeaderOffset + binary.Size(pe.FileHeader{}) + optHeaderSize
	dataOffset := sectionHeadersOffset + len(sections)*binary.Size(pe.SectionHeader32{})

	strTable := new(bytes.Buffer)
	strTable.Write(make([]byte, 4))

	var sectionHeaders []pe.SectionHeader32
	offset := dataOffset
	for i, section := range sections {
		var hdr pe.SectionHeader32
		if len(section.Name) <= len(hdr.Name) {
			copy(hdr.Name[:], section.Name)
		} else {
			copy(hdr.Name[:], fmt.Sprintf("/%d", strTable.Len()))
			strTable.WriteString(section.Name)
			strTable.WriteByte(0)
		}
		hdr.VirtualSize = uint32(len(section.Data))
		hdr.VirtualAddress = uint32(0x1000 * (i + 1))
		hdr.SizeOfRawData = uint32(len(section.Data))
		hdr.PointerToRawData = uint32(offset)
		hdr.Characteristics = 0x40000040 // initialized data, readable
		sectionHeaders = append(sectionHeaders, hdr)
		offset = align8(offset + len(section.Data))
	}

	strTableOffset := offset
	binary.LittleEndian.PutUint32(strTable.Bytes(), uint32(strTable.Len()))
	certTableOffset := align8(strTableOffset + strTable.Len())

	fileHdr := pe.FileHeader{
		Machine:              0x8664, // IMAGE_FILE_MACHINE_AMD64
		NumberOfSections:     uint16(len(sections)),
		PointerToSymbolTable: uint32(strTableOffset),
		SizeOfOptionalHeader: uint16(optHeaderSize),
		Characteristics:      0x0022} // executable, large address aware
	optHdr := pe.OptionalHeader64{
		Magic:               0x20b,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         uint32(0x1000 * (len(sections) + 1)),
		SizeOfHeaders:       uint32(dataOffset),
		Subsystem:           10, // EFI application
		NumberOfRvaAndSizes: 16}
	if len(certTable) > 0 {
		optHdr.DataDirectory[4] = pe.DataDirectory{
			VirtualAddress: uint32(certTableOffset),
			Size:           uint32(len(certTable))}
	}

	image := new(bytes.Buffer)

	dosHdr := make([]byte, dosHeaderSize)
	copy(dosHdr, "MZ")
	binary.LittleEndian.PutUint32(dosHdr[0x3c:], dosHeaderSize)
	image.Write(dosHdr)
	image.WriteString("PE\x00\x00")
	c.Assert(binary.Write(image, binary.LittleEndian, &fileHdr), IsNil)
	c.Assert(binary.Write(image, binary.LittleEndian, &optHdr), IsNil)
	c.Assert(binary.Write(image, binary.LittleEndian, sectionHeaders), IsNil)
	for _, section := range sections {
		image.Write(section.Data)
		pad8(image)
	}
	image.Write(strTable.Bytes())
	pad8(image)
	image.Write(certTable)

	return image.Bytes()
}

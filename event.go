// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	efi "github.com/canonical/go-efilib"

	"github.com/canonical/pcr-rehash/internal/ioerr"
)

// VariableEvent is the parsed payload of an EV_EFI_VARIABLE_DRIVER_CONFIG
// or EV_EFI_VARIABLE_AUTHORITY measurement, corresponding to the
// UEFI_VARIABLE_DATA type. The vendor GUID is kept in its wire form.
type VariableEvent struct {
	VariableGuid efi.GUID
	VariableName string
	Data         []byte
}

// decodeUTF16 decodes nchars UTF-16LE code units from r. The variable
// names measured by firmware are plain UCS-2, so a surrogate code unit
// indicates a payload we don't understand and is treated as a decode
// failure rather than decoded as a lone unit.
func decodeUTF16(r io.Reader, nchars uint64) (string, error) {
	var builder strings.Builder

	for i := uint64(0); i < nchars; i++ {
		var c uint16
		if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
			return "", ioerr.EOFIsUnexpected(err)
		}
		if utf16.IsSurrogate(rune(c)) {
			return "", fmt.Errorf("unexpected surrogate code unit %#04x in variable name", c)
		}
		builder.WriteRune(rune(c))
	}

	return builder.String(), nil
}

// https://trustedcomputinggroup.org/wp-content/uploads/TCG_EFI_Platform_1_22_Final_-v15.pdf (section 7.8 "Measuring EFI Variables")
// https://trustedcomputinggroup.org/wp-content/uploads/TCG_PCClientSpecPlat_TPM_2p0_1p04_pub.pdf (section 9.2.6 "Measuring UEFI Variables")
func decodeVariableEvent(data []byte) (*VariableEvent, error) {
	r := bytes.NewReader(data)

	e := new(VariableEvent)

	guid, err := efi.ReadGUID(r)
	if err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read vendor GUID: %w", err)
	}
	e.VariableGuid = guid

	var unicodeNameLength uint64
	if err := binary.Read(r, binary.LittleEndian, &unicodeNameLength); err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read name length: %w", err)
	}
	if unicodeNameLength == 0 {
		return nil, errors.New("zero length variable name")
	}

	var variableDataLength uint64
	if err := binary.Read(r, binary.LittleEndian, &variableDataLength); err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read data length: %w", err)
	}

	name, err := decodeUTF16(r, unicodeNameLength)
	if err != nil {
		return nil, fmt.Errorf("cannot decode variable name: %w", err)
	}
	e.VariableName = name

	if variableDataLength > uint64(r.Len()) {
		return nil, fmt.Errorf("invalid variable data length (%d bytes, %d available)", variableDataLength, r.Len())
	}
	e.Data = make([]byte, variableDataLength)
	if _, err := io.ReadFull(r, e.Data); err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read variable data: %w", err)
	}

	if r.Len() > 0 {
		return nil, fmt.Errorf("event data contains %d trailing bytes", r.Len())
	}

	return e, nil
}

// DecodeVariableEvent parses the event payload of an EFI variable
// measurement. The supplied data is the complete event data field of the
// log record.
func DecodeVariableEvent(data []byte) (*VariableEvent, error) {
	e, err := decodeVariableEvent(data)
	if err != nil {
		return nil, &MalformedEventError{err: err}
	}
	return e, nil
}

func (e *VariableEvent) String() string {
	return fmt.Sprintf("EFI variable %s: %d bytes of data", FullVariableName(e), len(e.Data))
}

// Bytes re-marshals this event with its own variable data.
func (e *VariableEvent) Bytes() []byte {
	w := new(bytes.Buffer)
	if err := e.Write(w, e.Data); err != nil {
		panic(err)
	}
	return w.Bytes()
}

// Write re-emits the UEFI_VARIABLE_DATA layout for this event, substituting
// the supplied data for the variable contents recorded at measurement time.
// This produces the exact byte sequence the firmware will hash on the next
// boot if the variable then holds data, so the length fields are computed
// from the name and the replacement buffer, never reused from the log.
func (e *VariableEvent) Write(w io.Writer, data []byte) error {
	if _, err := w.Write(e.VariableGuid[:]); err != nil {
		return err
	}

	// ConvertUTF8ToUCS2 substitutes the replacement character for runes
	// outside the BMP, so the measured name would differ from this one.
	// Such a name cannot have come from DecodeVariableEvent.
	for _, r := range e.VariableName {
		if r >= 0x10000 || utf16.IsSurrogate(r) {
			return fmt.Errorf("variable name %q is not representable in UCS-2", e.VariableName)
		}
	}
	ucs2Name := efi.ConvertUTF8ToUCS2(e.VariableName)

	if err := binary.Write(w, binary.LittleEndian, uint64(len(ucs2Name))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ucs2Name); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

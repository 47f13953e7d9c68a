// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

// Package ioerr provides helpers for error handling when decoding binary
// structures.
package ioerr

import (
	"io"

	"golang.org/x/xerrors"
)

// EOFIsUnexpected converts [io.EOF] into [io.ErrUnexpectedEOF], which is
// useful when decoding fields that aren't at the start of a structure,
// where running out of bytes means the structure is truncated rather than
// absent.
//
// It can be called with a single error argument, which is passed through
// untouched unless it is [io.EOF], or with a format string and arguments
// in the style of [xerrors.Errorf], in which case any [io.EOF] argument
// is converted before wrapping.
func EOFIsUnexpected(args ...interface{}) error {
	switch {
	case len(args) > 1:
		format, ok := args[0].(string)
		if !ok {
			panic("expected a format string")
		}
		for i, arg := range args[1:] {
			if err, isErr := arg.(error); isErr && err == io.EOF {
				args[1+i] = io.ErrUnexpectedEOF
			}
		}
		return xerrors.Errorf(format, args[1:]...)
	case len(args) == 1:
		switch err := args[0].(type) {
		case error:
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		case nil:
			return nil
		default:
			panic("invalid type")
		}
	default:
		panic("no arguments")
	}
}

// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package rehash

import (
	"fmt"
	"io"
	"os"
)

// ImageReader corresponds to an open handle from which to read a binary
// image.
type ImageReader interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Image provides a PE binary that participates in the boot process, such
// as the shim loader or the application that shim verifies and executes.
type Image interface {
	fmt.Stringer
	Open() (ImageReader, error) // Open a handle to the image for reading
}

type fileImageReader struct {
	*os.File
	size int64
}

func (r *fileImageReader) Size() int64 {
	return r.size
}

// FileImage provides an image from a file.
type FileImage string

// NewFileImage creates a new FileImage for the file at the specified path.
func NewFileImage(path string) FileImage {
	return FileImage(path)
}

// String implements [fmt.Stringer].
func (p FileImage) String() string {
	return string(p)
}

// Open implements [Image.Open].
func (p FileImage) Open() (ImageReader, error) {
	f, err := os.Open(string(p))
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileImageReader{File: f, size: fi.Size()}, nil
}

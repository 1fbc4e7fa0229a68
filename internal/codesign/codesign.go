/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codesign

import (
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	csMagicCodeDirectory      = 0xfade0c02
	csMagicEmbeddedSignature  = 0xfade0cc0
	csSlotCodeDirectory       = 0
	loadCmdCodeSignature      = 0x1d
	codeDirectoryHashTypeByte = 37

	hashTypeSHA1            = 1
	hashTypeSHA256          = 2
	hashTypeSHA256Truncated = 3
	hashTypeSHA384          = 4

	truncatedHashSize = 20
	superBlobHeader   = 12
	blobIndexSize     = 8

	magicFat = 0xcafebabe
)

// Inspector extracts the primary code directory hash (the hash of the code
// directory in slot zero) from Mach-O files, thin or universal. For a
// universal file the first architecture is used.
type Inspector struct {
	Logger *logrus.Logger
}

func NewInspector(logger *logrus.Logger) *Inspector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Inspector{Logger: logger}
}

// CDHash reports ok == false for files without a usable hash: not Mach-O,
// unsigned, a malformed signature or an unsupported hash type. Errors are
// returned only for I/O failures and do not repeat the path.
func (i *Inspector) CDHash(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, withoutPath(err)
	}
	defer f.Close()

	cdhash, err := PrimaryCDHash(f)
	switch {
	case errors.Is(err, ErrNotMachO), errors.Is(err, ErrUnsigned),
		errors.Is(err, ErrMalformedSignature), errors.Is(err, ErrUnsupportedHashType):
		i.logger().WithField("path", path).Debugf("skipping: %v", err)
		return nil, false, nil
	case err != nil:
		return nil, false, withoutPath(err)
	}
	return cdhash, true, nil
}

// withoutPath drops the file name from os errors; callers prefix the path.
func withoutPath(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

func (i *Inspector) logger() *logrus.Logger {
	if i.Logger == nil {
		return logrus.StandardLogger()
	}
	return i.Logger
}

// PrimaryCDHash reads a Mach-O image from r and hashes its primary code
// directory with the hash type recorded in the directory.
func PrimaryCDHash(r io.ReaderAt) ([]byte, error) {
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotMachO
		}
		return nil, err
	}

	if binary.BigEndian.Uint32(magic[:]) == magicFat {
		fat, err := macho.NewFatFile(r)
		if err != nil {
			// Java class files share the universal magic
			return nil, fmt.Errorf("%w: %v", ErrNotMachO, err)
		}
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return nil, ErrNotMachO
		}
		arch := fat.Arches[0]
		return codeDirectoryHash(arch.File, io.NewSectionReader(r, int64(arch.Offset), int64(arch.Size)))
	}

	file, err := macho.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMachO, err)
	}
	defer file.Close()
	return codeDirectoryHash(file, r)
}

func codeDirectoryHash(f *macho.File, image io.ReaderAt) ([]byte, error) {
	dataOff, dataSize, found := codeSignatureRange(f)
	if !found {
		return nil, ErrUnsigned
	}

	sig := make([]byte, dataSize)
	if _, err := image.ReadAt(sig, int64(dataOff)); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: signature runs past the end of the image", ErrMalformedSignature)
		}
		return nil, err
	}

	cd, err := primaryCodeDirectory(sig)
	if err != nil {
		return nil, err
	}
	return hashCodeDirectory(cd)
}

func codeSignatureRange(f *macho.File) (dataOff, dataSize uint32, found bool) {
	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 16 {
			continue
		}
		if f.ByteOrder.Uint32(raw[0:4]) != loadCmdCodeSignature {
			continue
		}
		return f.ByteOrder.Uint32(raw[8:12]), f.ByteOrder.Uint32(raw[12:16]), true
	}
	return 0, 0, false
}

// primaryCodeDirectory walks the embedded signature SuperBlob (always big
// endian) and returns the CodeDirectory blob stored in slot zero.
func primaryCodeDirectory(sig []byte) ([]byte, error) {
	if len(sig) < superBlobHeader {
		return nil, fmt.Errorf("%w: superblob too short", ErrMalformedSignature)
	}
	if magic := binary.BigEndian.Uint32(sig[0:4]); magic != csMagicEmbeddedSignature {
		return nil, fmt.Errorf("%w: superblob magic 0x%08x", ErrMalformedSignature, magic)
	}
	count := binary.BigEndian.Uint32(sig[8:12])
	if uint64(count)*blobIndexSize > uint64(len(sig)-superBlobHeader) {
		return nil, fmt.Errorf("%w: %d index entries do not fit", ErrMalformedSignature, count)
	}

	for i := range int(count) {
		entry := sig[superBlobHeader+i*blobIndexSize:]
		slot := binary.BigEndian.Uint32(entry[0:4])
		offset := binary.BigEndian.Uint32(entry[4:8])
		if slot != csSlotCodeDirectory {
			continue
		}
		if uint64(offset)+8 > uint64(len(sig)) {
			return nil, fmt.Errorf("%w: code directory offset %d out of range", ErrMalformedSignature, offset)
		}
		blob := sig[offset:]
		if magic := binary.BigEndian.Uint32(blob[0:4]); magic != csMagicCodeDirectory {
			return nil, fmt.Errorf("%w: code directory magic 0x%08x", ErrMalformedSignature, magic)
		}
		length := binary.BigEndian.Uint32(blob[4:8])
		if uint64(length) > uint64(len(blob)) || length <= codeDirectoryHashTypeByte {
			return nil, fmt.Errorf("%w: code directory length %d", ErrMalformedSignature, length)
		}
		return blob[:length], nil
	}
	return nil, ErrUnsigned
}

func hashCodeDirectory(cd []byte) ([]byte, error) {
	var (
		h      crypto.Hash
		length int
	)
	switch hashType := cd[codeDirectoryHashTypeByte]; hashType {
	case hashTypeSHA1:
		h = crypto.SHA1
	case hashTypeSHA256:
		h = crypto.SHA256
	case hashTypeSHA256Truncated:
		h, length = crypto.SHA256, truncatedHashSize
	case hashTypeSHA384:
		h = crypto.SHA384
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedHashType, hashType)
	}

	hasher := h.New()
	hasher.Write(cd)
	sum := hasher.Sum(nil)
	if length > 0 {
		sum = sum[:length]
	}
	return sum, nil
}

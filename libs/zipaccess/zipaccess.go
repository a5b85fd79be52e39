// Package zipaccess implements random-access extraction of a single named
// member from a remote ZIP archive addressed only by an HTTP(S) URL and its
// total byte length. It never downloads the archive in full: it issues a
// small number of byte-range fetches (a trailing window for the
// end-of-central-directory record, the central directory itself, then a
// local header and payload per requested member).
//
// This package does not know about HTTP. Callers supply a RangeFetcher —
// libs/archiveclient implements one backed by resty and a circuit breaker.
// Keeping the transport out of this package is what makes the EOCD scan,
// central-directory walk, and local-header arithmetic unit-testable against
// an in-memory fetcher.
//
// Zip64 is out of scope: archives whose EOCD cannot be found in the
// trailing window, or whose central-directory size or offset does not fit
// the archive (as with Zip64 placeholder values), fail with
// ErrEOCDNotFound. The EOCD entry count is not read, and an entry whose
// 32-bit sizes point past the end of the archive fails in ReadMember with
// ErrTruncatedArchive.
package zipaccess

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	eocdSignature = 0x06054b50
	cdSignature   = 0x02014b50

	// eocdFixedSize is the EOCD record's length excluding the variable
	// comment field.
	eocdFixedSize = 22

	// maxCommentSize is the largest value the EOCD comment-length field (a
	// uint16) can hold.
	maxCommentSize = 0xFFFF

	localHeaderFixedSize = 30

	// CompressionStored and CompressionDeflate are the only two
	// compression methods the upstream is expected to use.
	CompressionStored  = 0
	CompressionDeflate = 8
)

// Sentinel errors, matching the taxonomy in the system's error design:
// ArchiveMalformed covers EOCDNotFound/TruncatedArchive, Unsupported
// covers UnsupportedCompression.
var (
	ErrEOCDNotFound        = errors.New("zipaccess: end of central directory not found")
	ErrUnsupportedCompress = errors.New("zipaccess: unsupported compression method")
	ErrTruncatedArchive    = errors.New("zipaccess: truncated archive")
	ErrMemberNotFound      = errors.New("zipaccess: member not found")
)

// RangeFetcher fetches a half-open... actually inclusive byte range
// [start, end] of a remote resource of a known total Size.
type RangeFetcher interface {
	// FetchRange returns exactly the bytes in the inclusive range
	// [start, end], or an error. Implementations are expected to issue an
	// HTTP Range: bytes=start-end request.
	FetchRange(ctx context.Context, start, end int64) ([]byte, error)
	// Size returns the total size of the archive in bytes.
	Size() int64
}

// Entry describes one member of the central directory.
type Entry struct {
	Name              string
	CompressionMethod uint16
	CompressedSize    uint32
	UncompressedSize  uint32
	LocalHeaderOffset uint32
}

// Directory is the parsed central directory of an archive.
type Directory struct {
	Entries []Entry
}

// Find returns the entry with the given name, if present.
func (d *Directory) Find(name string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// OpenDirectory locates and parses the central directory of the archive
// behind fetcher. It issues exactly two range requests: a trailing window
// to find the EOCD, and the central directory itself.
func OpenDirectory(ctx context.Context, fetcher RangeFetcher) (*Directory, error) {
	size := fetcher.Size()
	if size <= 0 {
		return nil, fmt.Errorf("%w: archive size is %d", ErrEOCDNotFound, size)
	}

	windowSize := int64(maxCommentSize + eocdFixedSize)
	if windowSize > size {
		windowSize = size
	}
	tailStart := size - windowSize
	tail, err := fetcher.FetchRange(ctx, tailStart, size-1)
	if err != nil {
		return nil, err
	}

	eocdPos, err := findEOCD(tail)
	if err != nil {
		return nil, err
	}
	eocd := tail[eocdPos:]
	if len(eocd) < eocdFixedSize {
		return nil, fmt.Errorf("%w: short EOCD record", ErrTruncatedArchive)
	}

	cdSize := int64(binary.LittleEndian.Uint32(eocd[12:16]))
	cdOffset := int64(binary.LittleEndian.Uint32(eocd[16:20]))
	if cdSize <= 0 || cdOffset < 0 || cdOffset+cdSize > size {
		return nil, fmt.Errorf("%w: central directory bounds out of range", ErrEOCDNotFound)
	}

	cdBuf, err := fetcher.FetchRange(ctx, cdOffset, cdOffset+cdSize-1)
	if err != nil {
		return nil, err
	}
	if int64(len(cdBuf)) < cdSize {
		return nil, fmt.Errorf("%w: central directory", ErrTruncatedArchive)
	}

	entries, err := parseCentralDirectory(cdBuf)
	if err != nil {
		return nil, err
	}
	return &Directory{Entries: entries}, nil
}

// findEOCD scans buf backward for the EOCD signature, returning its offset
// within buf. Scanning backward finds the last (correct, per spec) match
// even if the signature bytes happen to appear inside an archive comment.
func findEOCD(buf []byte) (int, error) {
	sig := make([]byte, 4)
	binary.LittleEndian.PutUint32(sig, eocdSignature)

	for i := len(buf) - eocdFixedSize; i >= 0; i-- {
		if bytes.Equal(buf[i:i+4], sig) {
			return i, nil
		}
	}
	return 0, ErrEOCDNotFound
}

func parseCentralDirectory(buf []byte) ([]Entry, error) {
	var entries []Entry
	sig := make([]byte, 4)
	binary.LittleEndian.PutUint32(sig, cdSignature)

	pos := 0
	for pos+46 <= len(buf) {
		if !bytes.Equal(buf[pos:pos+4], sig) {
			break
		}
		compressionMethod := binary.LittleEndian.Uint16(buf[pos+10 : pos+12])
		compressedSize := binary.LittleEndian.Uint32(buf[pos+20 : pos+24])
		uncompressedSize := binary.LittleEndian.Uint32(buf[pos+24 : pos+28])
		filenameLength := int(binary.LittleEndian.Uint16(buf[pos+28 : pos+30]))
		extraLength := int(binary.LittleEndian.Uint16(buf[pos+30 : pos+32]))
		commentLength := int(binary.LittleEndian.Uint16(buf[pos+32 : pos+34]))
		localHeaderOffset := binary.LittleEndian.Uint32(buf[pos+42 : pos+46])

		nameStart := pos + 46
		nameEnd := nameStart + filenameLength
		if nameEnd > len(buf) {
			return nil, fmt.Errorf("%w: central directory entry filename", ErrTruncatedArchive)
		}
		name := string(buf[nameStart:nameEnd])

		entries = append(entries, Entry{
			Name:              name,
			CompressionMethod: compressionMethod,
			CompressedSize:    compressedSize,
			UncompressedSize:  uncompressedSize,
			LocalHeaderOffset: localHeaderOffset,
		})

		pos = nameEnd + extraLength + commentLength
	}
	return entries, nil
}

// ReadMember fetches and decompresses the payload of entry, returning the
// raw decompressed bytes. Callers decode the bytes as UTF-8 text
// themselves (csvdecode operates on an io.Reader).
func ReadMember(ctx context.Context, fetcher RangeFetcher, entry Entry) ([]byte, error) {
	size := fetcher.Size()
	localHeaderEnd := int64(entry.LocalHeaderOffset) + localHeaderFixedSize - 1
	if localHeaderEnd >= size {
		return nil, fmt.Errorf("%w: local header for %q", ErrTruncatedArchive, entry.Name)
	}
	header, err := fetcher.FetchRange(ctx, int64(entry.LocalHeaderOffset), localHeaderEnd)
	if err != nil {
		return nil, err
	}
	if len(header) < localHeaderFixedSize {
		return nil, fmt.Errorf("%w: local header for %q", ErrTruncatedArchive, entry.Name)
	}

	localFilenameLength := int(binary.LittleEndian.Uint16(header[26:28]))
	localExtraLength := int(binary.LittleEndian.Uint16(header[28:30]))

	dataStart := int64(entry.LocalHeaderOffset) + localHeaderFixedSize + int64(localFilenameLength) + int64(localExtraLength)
	if entry.CompressedSize == 0 {
		return []byte{}, nil
	}
	dataEnd := dataStart + int64(entry.CompressedSize) - 1
	if dataEnd >= size {
		return nil, fmt.Errorf("%w: payload for %q", ErrTruncatedArchive, entry.Name)
	}

	payload, err := fetcher.FetchRange(ctx, dataStart, dataEnd)
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) < int64(entry.CompressedSize) {
		return nil, fmt.Errorf("%w: payload for %q", ErrTruncatedArchive, entry.Name)
	}

	switch entry.CompressionMethod {
	case CompressionStored:
		return payload, nil
	case CompressionDeflate:
		return inflate(payload)
	default:
		return nil, fmt.Errorf("%w: method %d for %q", ErrUnsupportedCompress, entry.CompressionMethod, entry.Name)
	}
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedArchive, err)
	}
	return out, nil
}

// ReadMemberText fetches entry and decodes it as UTF-8 text.
func ReadMemberText(ctx context.Context, fetcher RangeFetcher, entry Entry) (string, error) {
	raw, err := ReadMember(ctx, fetcher, entry)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

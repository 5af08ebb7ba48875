package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ErrCorruptArchive means the container structure itself is broken.
// Offsets read after this error cannot be trusted.
var ErrCorruptArchive = errors.New("corrupt archive")

// signatures from APPNOTE.TXT, little-endian on the wire
const (
	sigLocalFile    = 0x04034b50
	sigCentralDir   = 0x02014b50
	sigEndCentral   = 0x06054b50
	sigEndCentral64 = 0x06064b50
	sigLocator64    = 0x07064b50
)

const (
	localFileLen    = 30
	centralDirLen   = 46
	endCentralLen   = 22
	locator64Len    = 20
	endCentral64Len = 56
	maxCommentLen   = 0xffff
)

// extra field ids
const (
	extraZip64      = 0x0001
	extraExtendedTS = 0x5455
)

// Entry is one central directory record.
type Entry struct {
	Name             string
	Flags            uint16
	Method           Method
	Modified         time.Time
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	HeaderOffset     uint64
}

func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Archive holds the parsed central directory and the byte source.
// Payloads are read lazily via ReadPayload.
type Archive struct {
	Entries []*Entry
	Comment string

	r      io.ReaderAt
	size   int64
	closer io.Closer
}

func OpenArchiveFile(name string) (*Archive, error) {
	fp, err := os.Open(name)
	if err != nil {
		slog.Error("open", "name", name, "error", err)
		return nil, err
	}
	st, err := fp.Stat()
	if err != nil {
		slog.Error("stat", "name", name, "error", err)
		fp.Close()
		return nil, err
	}
	ar, err := OpenArchive(fp, st.Size())
	if err != nil {
		fp.Close()
		return nil, err
	}
	ar.closer = fp
	return ar, nil
}

func (ar *Archive) Close() error {
	if ar.closer != nil {
		return ar.closer.Close()
	}
	return nil
}

// OpenArchive parses the central directory of a zip container.
// It reads no payload data.
func OpenArchive(r io.ReaderAt, size int64) (*Archive, error) {
	ar := &Archive{r: r, size: size}
	eocd, eocdPos, err := findEndCentral(r, size)
	if err != nil {
		return nil, err
	}
	entryCount := uint64(binary.LittleEndian.Uint16(eocd[10:12]))
	dirSize := uint64(binary.LittleEndian.Uint32(eocd[12:16]))
	dirOffset := uint64(binary.LittleEndian.Uint32(eocd[16:20]))
	commentLen := int(binary.LittleEndian.Uint16(eocd[20:22]))
	if endCentralLen+commentLen <= len(eocd) {
		ar.Comment = string(eocd[endCentralLen : endCentralLen+commentLen])
	}
	if entryCount == 0xffff || dirSize == 0xffffffff || dirOffset == 0xffffffff {
		if cnt, dsz, doff, ok := readEndCentral64(r, eocdPos); ok {
			entryCount, dirSize, dirOffset = cnt, dsz, doff
		}
	}
	slog.Debug("end of central directory", "entries", entryCount, "size", dirSize, "offset", dirOffset)
	if dirOffset > uint64(size) || dirSize > uint64(size)-dirOffset {
		return nil, fmt.Errorf("%w: central directory out of bounds (offset=%d size=%d file=%d)",
			ErrCorruptArchive, dirOffset, dirSize, size)
	}
	if entryCount > dirSize/centralDirLen {
		return nil, fmt.Errorf("%w: %d entries cannot fit in a %d byte directory",
			ErrCorruptArchive, entryCount, dirSize)
	}
	dir := make([]byte, dirSize)
	if _, err := r.ReadAt(dir, int64(dirOffset)); err != nil {
		return nil, fmt.Errorf("%w: read central directory: %v", ErrCorruptArchive, err)
	}
	ar.Entries = make([]*Entry, 0, entryCount)
	for i := uint64(0); i < entryCount; i++ {
		e, rest, err := parseCentralRecord(dir)
		if err != nil {
			return nil, err
		}
		if e.HeaderOffset > uint64(size) || e.CompressedSize > uint64(size) {
			return nil, fmt.Errorf("%w: entry %q out of bounds (offset=%d csize=%d)",
				ErrCorruptArchive, e.Name, e.HeaderOffset, e.CompressedSize)
		}
		ar.Entries = append(ar.Entries, e)
		dir = rest
	}
	return ar, nil
}

// findEndCentral scans backward over the trailing window for the end of
// central directory record. The record may be followed by a comment of
// up to 64KiB, so a fixed tail offset cannot be assumed.
func findEndCentral(r io.ReaderAt, size int64) ([]byte, int64, error) {
	if size < endCentralLen {
		return nil, 0, fmt.Errorf("%w: too small (%d bytes)", ErrCorruptArchive, size)
	}
	window := int64(maxCommentLen + endCentralLen)
	if window > size {
		window = size
	}
	buf := make([]byte, window)
	start := size - window
	if _, err := r.ReadAt(buf, start); err != nil {
		return nil, 0, fmt.Errorf("%w: read trailing window: %v", ErrCorruptArchive, err)
	}
	for i := len(buf) - endCentralLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != sigEndCentral {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(buf[i+20 : i+22]))
		if i+endCentralLen+commentLen > len(buf) {
			continue
		}
		return buf[i:], start + int64(i), nil
	}
	return nil, 0, fmt.Errorf("%w: end of central directory not found", ErrCorruptArchive)
}

// readEndCentral64 resolves 0xffff/0xffffffff sentinel fields through
// the zip64 locator immediately preceding the end record. A missing
// locator is not fatal: the 32-bit values stay in effect.
func readEndCentral64(r io.ReaderAt, eocdPos int64) (entries, dirSize, dirOffset uint64, ok bool) {
	if eocdPos < locator64Len {
		return 0, 0, 0, false
	}
	loc := make([]byte, locator64Len)
	if _, err := r.ReadAt(loc, eocdPos-locator64Len); err != nil {
		return 0, 0, 0, false
	}
	if binary.LittleEndian.Uint32(loc[0:4]) != sigLocator64 {
		return 0, 0, 0, false
	}
	recOff := binary.LittleEndian.Uint64(loc[8:16])
	rec := make([]byte, endCentral64Len)
	if _, err := r.ReadAt(rec, int64(recOff)); err != nil {
		return 0, 0, 0, false
	}
	if binary.LittleEndian.Uint32(rec[0:4]) != sigEndCentral64 {
		return 0, 0, 0, false
	}
	entries = binary.LittleEndian.Uint64(rec[32:40])
	dirSize = binary.LittleEndian.Uint64(rec[40:48])
	dirOffset = binary.LittleEndian.Uint64(rec[48:56])
	return entries, dirSize, dirOffset, true
}

func parseCentralRecord(dir []byte) (*Entry, []byte, error) {
	if len(dir) < centralDirLen {
		return nil, nil, fmt.Errorf("%w: truncated central directory record (%d bytes left)",
			ErrCorruptArchive, len(dir))
	}
	if binary.LittleEndian.Uint32(dir[0:4]) != sigCentralDir {
		return nil, nil, fmt.Errorf("%w: bad central directory signature", ErrCorruptArchive)
	}
	e := &Entry{
		Flags:            binary.LittleEndian.Uint16(dir[8:10]),
		Method:           Method(binary.LittleEndian.Uint16(dir[10:12])),
		CRC32:            binary.LittleEndian.Uint32(dir[16:20]),
		CompressedSize:   uint64(binary.LittleEndian.Uint32(dir[20:24])),
		UncompressedSize: uint64(binary.LittleEndian.Uint32(dir[24:28])),
		HeaderOffset:     uint64(binary.LittleEndian.Uint32(dir[42:46])),
	}
	dosTime := binary.LittleEndian.Uint16(dir[12:14])
	dosDate := binary.LittleEndian.Uint16(dir[14:16])
	e.Modified = dosToTime(dosTime, dosDate)
	nameLen := int(binary.LittleEndian.Uint16(dir[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(dir[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(dir[32:34]))
	need := centralDirLen + nameLen + extraLen + commentLen
	if len(dir) < need {
		return nil, nil, fmt.Errorf("%w: central directory record overruns directory", ErrCorruptArchive)
	}
	if nameLen == 0 {
		return nil, nil, fmt.Errorf("%w: entry with empty name", ErrCorruptArchive)
	}
	e.Name = string(dir[centralDirLen : centralDirLen+nameLen])
	parseExtra(e, dir[centralDirLen+nameLen:centralDirLen+nameLen+extraLen])
	return e, dir[need:], nil
}

// parseExtra handles the zip64 field (sentinel sizes/offset, in the
// order uncompressed, compressed, header offset) and the extended
// timestamp field which overrides the 2-second DOS time when present.
func parseExtra(e *Entry, extra []byte) {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+size {
			return
		}
		body := extra[4 : 4+size]
		switch id {
		case extraZip64:
			if e.UncompressedSize == 0xffffffff && len(body) >= 8 {
				e.UncompressedSize = binary.LittleEndian.Uint64(body[0:8])
				body = body[8:]
			}
			if e.CompressedSize == 0xffffffff && len(body) >= 8 {
				e.CompressedSize = binary.LittleEndian.Uint64(body[0:8])
				body = body[8:]
			}
			if e.HeaderOffset == 0xffffffff && len(body) >= 8 {
				e.HeaderOffset = binary.LittleEndian.Uint64(body[0:8])
			}
		case extraExtendedTS:
			if len(body) >= 5 && body[0]&0x1 != 0 {
				e.Modified = time.Unix(int64(binary.LittleEndian.Uint32(body[1:5])), 0).UTC()
			}
		}
		extra = extra[4+size:]
	}
}

// ReadPayload seeks to the entry's local header, cross-checks it
// against the central directory and returns the raw (still compressed)
// payload bytes.
func (ar *Archive) ReadPayload(e *Entry) ([]byte, error) {
	hdr := make([]byte, localFileLen)
	if _, err := ar.r.ReadAt(hdr, int64(e.HeaderOffset)); err != nil {
		return nil, fmt.Errorf("%w: entry %q: read local header at %d: %v",
			ErrCorruptArchive, e.Name, e.HeaderOffset, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != sigLocalFile {
		return nil, fmt.Errorf("%w: entry %q: bad local header signature at %d",
			ErrCorruptArchive, e.Name, e.HeaderOffset)
	}
	if m := Method(binary.LittleEndian.Uint16(hdr[8:10])); m != e.Method {
		return nil, fmt.Errorf("%w: entry %q: method mismatch (central=%s local=%s)",
			ErrCorruptArchive, e.Name, e.Method, m)
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
	if nameLen != len(e.Name) {
		return nil, fmt.Errorf("%w: entry %q: local name length %d != %d",
			ErrCorruptArchive, e.Name, nameLen, len(e.Name))
	}
	// sizes in the local header are only authoritative without a data
	// descriptor (flag bit 3) and without the zip64 sentinel
	if e.Flags&0x8 == 0 {
		if csize := binary.LittleEndian.Uint32(hdr[18:22]); csize != 0xffffffff && uint64(csize) != e.CompressedSize {
			return nil, fmt.Errorf("%w: entry %q: compressed size %d != %d",
				ErrCorruptArchive, e.Name, csize, e.CompressedSize)
		}
		if usize := binary.LittleEndian.Uint32(hdr[22:26]); usize != 0xffffffff && uint64(usize) != e.UncompressedSize {
			return nil, fmt.Errorf("%w: entry %q: uncompressed size %d != %d",
				ErrCorruptArchive, e.Name, usize, e.UncompressedSize)
		}
	}
	dataOff := int64(e.HeaderOffset) + localFileLen + int64(nameLen) + int64(extraLen)
	if dataOff < 0 || uint64(dataOff)+e.CompressedSize > uint64(ar.size) {
		return nil, fmt.Errorf("%w: entry %q: payload out of bounds (offset=%d csize=%d)",
			ErrCorruptArchive, e.Name, dataOff, e.CompressedSize)
	}
	raw := make([]byte, e.CompressedSize)
	if _, err := ar.r.ReadAt(raw, dataOff); err != nil {
		return nil, fmt.Errorf("%w: entry %q: read payload: %v", ErrCorruptArchive, e.Name, err)
	}
	return raw, nil
}

// dosToTime decodes the 2-second resolution MS-DOS date/time pair.
// The format carries no zone, UTC is assumed.
func dosToTime(dosTime, dosDate uint16) time.Time {
	if dosTime == 0 && dosDate == 0 {
		return time.Time{}
	}
	sec := int(dosTime&0x1f) * 2
	min := int((dosTime >> 5) & 0x3f)
	hour := int(dosTime >> 11)
	day := int(dosDate & 0x1f)
	month := time.Month((dosDate >> 5) & 0x0f)
	year := int(dosDate>>9) + 1980
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

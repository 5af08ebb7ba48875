package main

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"gopkg.in/loremipsum.v1"
)

var testMod = time.Date(2024, 5, 17, 12, 34, 56, 0, time.UTC)

var testNames = []string{"hello.txt", "lorem.txt", "dir/", "dir/ネコ.txt"}

const helloContent = "hello world\n"

// buildZip creates an in-memory fixture with stored, deflated and
// directory entries. Entry order is the order of testNames.
func buildZip(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	wr := zip.NewWriter(buf)
	lorem := loremipsum.New()
	contents := map[string]string{
		"hello.txt":    helloContent,
		"lorem.txt":    lorem.Paragraph(),
		"dir/":         "",
		"dir/ネコ.txt": "にゃー\n",
	}
	methods := map[string]uint16{
		"hello.txt":    zip.Store,
		"lorem.txt":    zip.Deflate,
		"dir/":         zip.Store,
		"dir/ネコ.txt": zip.Deflate,
	}
	for _, name := range testNames {
		fh := &zip.FileHeader{Name: name, Method: methods[name], Modified: testMod}
		w, err := wr.CreateHeader(fh)
		if err != nil {
			t.Fatal("CreateHeader", name, err)
		}
		if contents[name] != "" {
			if _, err := w.Write([]byte(contents[name])); err != nil {
				t.Fatal("Write", name, err)
			}
		}
	}
	if err := wr.Close(); err != nil {
		t.Fatal("close writer", err)
	}
	return buf.Bytes()
}

// buildZipWith creates a single-entry archive, deflated by the stdlib
// writer.
func buildZipWith(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	wr := zip.NewWriter(buf)
	fh := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: testMod}
	w, err := wr.CreateHeader(fh)
	if err != nil {
		t.Fatal("CreateHeader", name, err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatal("Write", name, err)
	}
	if err := wr.Close(); err != nil {
		t.Fatal("close writer", err)
	}
	return buf.Bytes()
}

// timeToMsDos mirrors dosToTime; CreateRaw does not derive the DOS
// date/time pair from fh.Modified, so raw fixtures set it themselves.
func timeToMsDos(t time.Time) (dosTime, dosDate uint16) {
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	return dosTime, dosDate
}

// addRaw appends a pre-compressed (or intentionally bogus) entry with
// caller-controlled method and checksum.
func addRaw(t *testing.T, wr *zip.Writer, name string, method uint16, data []byte, crc uint32) {
	t.Helper()
	fh := &zip.FileHeader{
		Name:               name,
		Method:             method,
		Modified:           testMod,
		CRC32:              crc,
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	}
	fh.ModifiedTime, fh.ModifiedDate = timeToMsDos(testMod)
	w, err := wr.CreateRaw(fh)
	if err != nil {
		t.Fatal("CreateRaw", name, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal("WriteRaw", name, err)
	}
}

// badCRCZip has one stored entry whose directory checksum does not
// match its payload.
func badCRCZip(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	wr := zip.NewWriter(buf)
	addRaw(t, wr, "bad.txt", zip.Store, []byte("hello"), 0xdeadbeef)
	if err := wr.Close(); err != nil {
		t.Fatal("close writer", err)
	}
	return buf.Bytes()
}

// buildZip64 builds, byte by byte, a one-entry archive whose end record
// and directory sizes/offset all carry sentinel values, so parsing has
// to go through the zip64 end record and the 0x0001 extra field. The
// stdlib writer only emits those structures past the 4GiB mark.
func buildZip64(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w16 := func(v uint16) { binary.Write(buf, binary.LittleEndian, v) }
	w32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) }
	w64 := func(v uint64) { binary.Write(buf, binary.LittleEndian, v) }
	// local file header, stored "hello"
	w32(sigLocalFile)
	w16(45) // version needed
	w16(0)  // flags
	w16(0)  // method: stored
	w16(0)  // mod time
	w16(0)  // mod date
	w32(0x3610a686)
	w32(5) // compressed size
	w32(5) // uncompressed size
	w16(5) // name length
	w16(0) // extra length
	buf.WriteString("a.txt")
	buf.WriteString("hello")
	dirOffset := buf.Len()
	// central directory record with sentinel sizes and offset
	w32(sigCentralDir)
	w16(45) // version made by
	w16(45) // version needed
	w16(0)  // flags
	w16(0)  // method
	w16(0)  // mod time
	w16(0)  // mod date
	w32(0x3610a686)
	w32(0xffffffff) // compressed size, in the extra field
	w32(0xffffffff) // uncompressed size, in the extra field
	w16(5)          // name length
	w16(28)         // extra length
	w16(0)          // comment length
	w16(0)          // disk number start
	w16(0)          // internal attributes
	w32(0)          // external attributes
	w32(0xffffffff) // header offset, in the extra field
	buf.WriteString("a.txt")
	w16(extraZip64)
	w16(24)
	w64(5) // uncompressed size
	w64(5) // compressed size
	w64(0) // header offset
	dirSize := buf.Len() - dirOffset
	rec64Offset := buf.Len()
	// zip64 end of central directory record
	w32(sigEndCentral64)
	w64(endCentral64Len - 12) // size of the remainder
	w16(45)                   // version made by
	w16(45)                   // version needed
	w32(0)                    // this disk
	w32(0)                    // directory start disk
	w64(1)                    // entries on this disk
	w64(1)                    // entries total
	w64(uint64(dirSize))
	w64(uint64(dirOffset))
	// zip64 locator
	w32(sigLocator64)
	w32(0) // disk holding the end record
	w64(uint64(rec64Offset))
	w32(1) // total disks
	// end of central directory, everything deferred to the zip64 record
	w32(sigEndCentral)
	w16(0) // this disk
	w16(0) // directory start disk
	w16(0xffff)
	w16(0xffff)
	w32(0xffffffff)
	w32(0xffffffff)
	w16(0) // comment length
	return buf.Bytes()
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	fp, err := os.CreateTemp("", "zip*.zip")
	if err != nil {
		t.Fatal("CreateTemp", err)
	}
	defer fp.Close()
	written, err := fp.Write(data)
	if err != nil {
		t.Fatal("WriteTmp", err)
	}
	if written != len(data) {
		t.Fatal("short write?", written, len(data))
	}
	t.Cleanup(func() { os.Remove(fp.Name()) })
	return fp.Name()
}

func openFixture(t *testing.T, data []byte) *Archive {
	t.Helper()
	ar, err := OpenArchive(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal("OpenArchive", err)
	}
	return ar
}

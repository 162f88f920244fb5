package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charsets reported by Decode.
const (
	CharsetUTF8        = "UTF-8"
	CharsetUTF16LE     = "UTF-16LE"
	CharsetUTF16BE     = "UTF-16BE"
	CharsetWindows1252 = "windows-1252"
	CharsetISO88599    = "ISO-8859-9"
)

const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decoded is a UTF-8 view over the original input.
type Decoded struct {
	io.Reader
	Charset string
}

// Decode sniffs the encoding of r and returns a reader producing UTF-8.
// Spreadsheet exports of a ledger are the usual non-UTF-8 input, so the
// detection order is:
//  1. BOM (UTF-8 BOM is stripped; UTF-16 LE/BE is decoded)
//  2. valid UTF-8 passes through untouched
//  3. chardet heuristics for the single-byte charsets we know how to decode
//  4. Windows-1252
func Decode(r io.Reader) (*Decoded, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return &Decoded{Reader: br, Charset: CharsetUTF8}, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return &Decoded{Reader: transform.NewReader(br, dec), Charset: CharsetUTF16LE}, nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return &Decoded{Reader: transform.NewReader(br, dec), Charset: CharsetUTF16BE}, nil
	}

	if utf8.Valid(trimPartialRune(buf)) {
		return &Decoded{Reader: br, Charset: CharsetUTF8}, nil
	}

	if res, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		switch res.Charset {
		case "UTF-8":
			return &Decoded{Reader: br, Charset: CharsetUTF8}, nil
		case "ISO-8859-1", "windows-1252":
			return &Decoded{Reader: transform.NewReader(br, charmap.Windows1252.NewDecoder()), Charset: CharsetWindows1252}, nil
		case "ISO-8859-9":
			return &Decoded{Reader: transform.NewReader(br, charmap.ISO8859_9.NewDecoder()), Charset: CharsetISO88599}, nil
		}
	}

	return &Decoded{Reader: transform.NewReader(br, charmap.Windows1252.NewDecoder()), Charset: CharsetWindows1252}, nil
}

// trimPartialRune drops an incomplete trailing UTF-8 sequence cut off by the sniff window.
func trimPartialRune(buf []byte) []byte {
	if len(buf) < sniffSize {
		return buf
	}

	for i := 1; i <= utf8.UTFMax && i <= len(buf); i++ {
		if utf8.RuneStart(buf[len(buf)-i]) {
			if !utf8.FullRune(buf[len(buf)-i:]) {
				return buf[:len(buf)-i]
			}

			break
		}
	}

	return buf
}

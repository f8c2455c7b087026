// Package textenc detects and decodes text across the encodings produced
// by reviewer CLI tools on different platforms: UTF-8 (with or without a
// byte-order mark), GBK, and GB18030.
//
// Two entry points with deliberately different failure behavior:
// DecodeBytes never fails and is used for live stream output, where losing
// a few bytes beats crashing the run. ReadFile fails loudly, because a
// silently mis-decoded review document would corrupt the review itself.
package textenc

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// encodingName pairs a decoder with the name reported in errors.
type encodingName struct {
	name string
	enc  encoding.Encoding
}

// Attempt order matters: GB18030 maps nearly every byte sequence, so the
// stricter encodings must come first.
var attempts = []encodingName{
	{"utf-8", nil},
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeError is returned by ReadFile when no supported encoding decodes
// the file cleanly.
type DecodeError struct {
	Path      string
	Encodings []string
	Last      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("textenc: %s cannot be decoded with any of %v: %v", e.Path, e.Encodings, e.Last)
}

func (e *DecodeError) Unwrap() error { return e.Last }

// DecodeBytes decodes a byte chunk, trying each supported encoding
// strictly and falling back to lossy UTF-8 with U+FFFD substitution when
// all attempts fail. It never returns an error; non-empty input always
// yields non-empty output.
func DecodeBytes(data []byte, allowBOM bool) string {
	if len(data) == 0 {
		return ""
	}

	for _, a := range attempts {
		if s, err := decodeStrict(data, a.enc); err == nil {
			return stripBOM(s, allowBOM)
		}
	}

	// Lossy fallback: invalid sequences become replacement runes so the
	// stream keeps flowing.
	return stripBOM(strings.ToValidUTF8(string(data), string(utf8.RuneError)), allowBOM)
}

// ReadFile reads a file trying each supported encoding strictly, in
// order. A leading byte-order mark is stripped explicitly even when the
// winning decoder already consumed part of it.
func ReadFile(path string, allowBOM bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("textenc.ReadFile: %w", err)
	}

	var names []string
	var last error
	for _, a := range attempts {
		names = append(names, a.name)
		s, err := decodeStrict(data, a.enc)
		if err != nil {
			last = err
			continue
		}
		return stripBOM(s, allowBOM), nil
	}

	return "", &DecodeError{Path: path, Encodings: names, Last: last}
}

// decodeStrict decodes with enc (nil means UTF-8) and fails on any byte
// sequence the encoding cannot represent. The x/text decoders substitute
// U+FFFD rather than erroring, so substitution in the output of input
// that contained none is treated as failure.
func decodeStrict(data []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		trimmed := bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(trimmed) {
			return "", fmt.Errorf("invalid UTF-8 sequence")
		}
		return string(data), nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(data, utf8.RuneError) {
		return "", fmt.Errorf("undecodable byte sequence")
	}
	return string(out), nil
}

func stripBOM(s string, allowBOM bool) string {
	if allowBOM {
		return strings.TrimPrefix(s, "\ufeff")
	}
	return s
}

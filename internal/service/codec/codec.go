// Package codec implements the storage compression codec for user
// documents. Documents are compressed with brotli, falling back to raw
// DEFLATE, and persisted compressed only when that is strictly smaller
// than the raw JSON text. Decoding is multi-format for backward
// compatibility with records written by earlier versions.
//
// The codec never returns an error to its callers: on any internal
// failure it degrades to a best-effort passthrough of the raw bytes.
package codec

import (
	"bytes"
	"encoding/base64"
	"io"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"

	"github.com/probsync/probsync/internal/kv"
)

// EncodingBrotli is the Content-Encoding marker for compressed records.
const EncodingBrotli = "br"

// ContentTypeJSON is the Content-Type recorded for user documents.
const ContentTypeJSON = "application/json"

// legacyPrefix marks pre-existing text records that hold base64 of the
// compressed payload instead of the compressed bytes themselves.
const legacyPrefix = "b64:"

// format identifies the stored representation of a record.
type format int

const (
	formatRaw format = iota // plain JSON text, no decoding needed
	formatLegacyBase64
	formatCompressed // brotli, or deflate from the fallback path
)

// Compress encodes jsonText for storage. It returns the compressed
// bytes, falling back to raw DEFLATE if brotli fails, and to the raw
// UTF-8 bytes if the whole pipeline fails.
func Compress(jsonText string) []byte {
	raw := []byte(jsonText)

	if out, err := compressBrotli(raw); err == nil {
		return out
	}
	if out, err := compressDeflate(raw); err == nil {
		return out
	}
	return raw
}

// Decompress decodes a stored record value back to JSON text. The
// encoding hint comes from the record's sidecar metadata; anything
// other than "br" means the value was stored as plain text.
func Decompress(value []byte, encoding string) string {
	switch detectFormat(value, encoding) {
	case formatRaw:
		return string(value)
	case formatLegacyBase64:
		return decodeLegacy(value)
	default:
		return decodeCompressed(value)
	}
}

// EncodeForStorage applies the write-time storage decision: persist the
// compressed form with an encoding marker only when it is strictly
// smaller than the raw JSON text.
func EncodeForStorage(jsonText string) ([]byte, *kv.Metadata) {
	raw := []byte(jsonText)
	compressed := Compress(jsonText)

	if len(compressed) < len(raw) {
		return compressed, &kv.Metadata{
			ContentEncoding: EncodingBrotli,
			ContentType:     ContentTypeJSON,
		}
	}
	return raw, &kv.Metadata{ContentType: ContentTypeJSON}
}

// detectFormat classifies a record value before dispatching to its
// decoder. Records without the brotli hint were stored as text. With
// the hint, a legacy-marked text value holds base64 of the payload, and
// a value that still looks like JSON text was never actually compressed.
func detectFormat(value []byte, encoding string) format {
	if encoding != EncodingBrotli {
		return formatRaw
	}
	if bytes.HasPrefix(value, []byte(legacyPrefix)) {
		return formatLegacyBase64
	}
	if looksLikeJSONText(value) {
		return formatRaw
	}
	return formatCompressed
}

// looksLikeJSONText reports whether value is valid UTF-8 starting with
// a JSON document opener. Compressed streams effectively never satisfy
// both.
func looksLikeJSONText(value []byte) bool {
	trimmed := bytes.TrimLeft(value, " \t\r\n")
	if len(trimmed) == 0 {
		return len(value) == 0
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return utf8.Valid(value)
}

// decodeLegacy handles text records of the form "b64:<base64 payload>".
func decodeLegacy(value []byte) string {
	payload, err := base64.StdEncoding.DecodeString(string(value[len(legacyPrefix):]))
	if err != nil {
		// Marker without valid base64: best-effort passthrough.
		return string(value)
	}
	return decodeCompressed(payload)
}

// decodeCompressed tries brotli first, then DEFLATE, and finally falls
// back to the raw bytes decoded as UTF-8.
func decodeCompressed(value []byte) string {
	if out, err := decompressBrotli(value); err == nil {
		return string(out)
	}
	if out, err := decompressDeflate(value); err == nil {
		return string(out)
	}
	return string(value)
}

func compressBrotli(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBrotli(value []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(value)))
}

func compressDeflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressDeflate(value []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(value))
	defer r.Close()
	return io.ReadAll(r)
}

package codec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_Brotli(t *testing.T) {
	doc := `{"problems":{"1":{"status":"solved"},"2":{"status":"attempted"}},"deletedIds":["3"]}`

	compressed, err := compressBrotli([]byte(doc))
	require.NoError(t, err)

	got := Decompress(compressed, EncodingBrotli)
	assert.Equal(t, doc, got)
}

func TestRoundTrip_Deflate(t *testing.T) {
	doc := `{"problems":{},"deletedIds":[]}`

	compressed, err := compressDeflate([]byte(doc))
	require.NoError(t, err)

	// A record produced by the fallback codec still carries the "br"
	// hint; the decoder must recover it via its own fallback.
	got := Decompress(compressed, EncodingBrotli)
	assert.Equal(t, doc, got)
}

func TestDecompress_NoHintPassesThrough(t *testing.T) {
	doc := `{"problems":{"9":{"status":"solved"}},"deletedIds":[]}`

	assert.Equal(t, doc, Decompress([]byte(doc), ""))
	assert.Equal(t, doc, Decompress([]byte(doc), "gzip"))
}

func TestDecompress_HintedButPlainText(t *testing.T) {
	// Record marked "br" that was never actually compressed.
	doc := `{"problems":{},"deletedIds":[]}`
	assert.Equal(t, doc, Decompress([]byte(doc), EncodingBrotli))
}

func TestDecompress_LegacyBase64(t *testing.T) {
	doc := `{"problems":{"42":{"status":"solved"}},"deletedIds":[]}`
	compressed, err := compressBrotli([]byte(doc))
	require.NoError(t, err)

	legacy := legacyPrefix + base64.StdEncoding.EncodeToString(compressed)
	assert.Equal(t, doc, Decompress([]byte(legacy), EncodingBrotli))
}

func TestDecompress_LegacyMarkerBadBase64(t *testing.T) {
	value := legacyPrefix + "!!not-base64!!"
	assert.Equal(t, value, Decompress([]byte(value), EncodingBrotli))
}

func TestDecompress_GarbageNeverPanics(t *testing.T) {
	garbage := []byte{0xff, 0xfe, 0x00, 0x13, 0x37}
	got := Decompress(garbage, EncodingBrotli)
	assert.Equal(t, string(garbage), got)
}

func TestEncodeForStorage_CompressibleDocument(t *testing.T) {
	// Highly repetitive JSON compresses well.
	doc := `{"problems":{` + strings.Repeat(`"1":{"status":"solved"},`, 200) + `"x":{}},"deletedIds":[]}`

	value, meta := EncodeForStorage(doc)
	require.NotNil(t, meta)
	assert.Equal(t, EncodingBrotli, meta.ContentEncoding)
	assert.Equal(t, ContentTypeJSON, meta.ContentType)
	assert.Less(t, len(value), len(doc))

	assert.Equal(t, doc, Decompress(value, meta.ContentEncoding))
}

func TestEncodeForStorage_IncompressibleStaysRaw(t *testing.T) {
	// Tiny documents gain nothing from compression.
	doc := `{"problems":{},"deletedIds":[]}`

	value, meta := EncodeForStorage(doc)
	require.NotNil(t, meta)
	assert.Empty(t, meta.ContentEncoding)
	assert.Equal(t, doc, string(value))

	assert.Equal(t, doc, Decompress(value, meta.ContentEncoding))
}

func TestCompress_EmptyDocument(t *testing.T) {
	got := Decompress(Compress(""), EncodingBrotli)
	assert.Equal(t, "", got)
}

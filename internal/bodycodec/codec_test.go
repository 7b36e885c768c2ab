package bodycodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentEncoding(t *testing.T) {
	assert.Equal(t, []string{"gzip", "br", "deflate"}, ParseContentEncoding("GZip, BR, Deflate"))
	assert.Nil(t, ParseContentEncoding(""))
	assert.Equal(t, []string{"identity"}, ParseContentEncoding("identity"))
}

func TestEncodeDecodeSingleCodecRoundTrip(t *testing.T) {
	for _, enc := range []string{"gzip", "deflate", "br", "identity"} {
		encoded, err := Encode([]string{enc}, []byte("Hello World !"))
		require.NoError(t, err)
		decoded, err := Decode([]string{enc}, encoded)
		require.NoError(t, err)
		assert.Equal(t, "Hello World !", string(decoded))
	}
}

func TestLayeredRoundTrip(t *testing.T) {
	encodings := []string{"gzip", "br", "deflate"}
	original := []byte("...go back to the main page at https://www.test.info/test/index.html")

	encoded, err := Encode(encodings, original)
	require.NoError(t, err)

	decoded, err := Decode(encodings, encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestUnsupportedEncodingErrors(t *testing.T) {
	_, err := Decode([]string{"compress"}, []byte("x"))
	assert.Error(t, err)
}

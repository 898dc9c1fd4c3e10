package encode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	original := []byte("hello")
	encoded := EncodeBase64String(original)
	decoded, err := DecodeBase64String(encoded)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestDecodeAttachment(t *testing.T) {
	payload := EncodeBase64String([]byte("%PDF-1.7"))

	data, mimeType, err := DecodeAttachment(payload)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.7"), data)
	require.Empty(t, mimeType)

	data, mimeType, err = DecodeAttachment("data:application/pdf;base64," + payload)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.7"), data)
	require.Equal(t, "application/pdf", mimeType)

	_, _, err = DecodeAttachment("data:text/plain,hello")
	require.Error(t, err)

	_, _, err = DecodeAttachment("data:application/pdf;base64")
	require.Error(t, err)

	_, _, err = DecodeAttachment("!!!")
	require.Error(t, err)

	_, _, err = DecodeAttachment("")
	require.Error(t, err)
}

// Package encode carries binary attachments through JSON as base64 text.
package encode

import (
	"encoding/base64"
	"fmt"
	"strings"
)

func DecodeBase64String(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(value)
}

func EncodeBase64String(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DecodeAttachment accepts plain base64 or a data URL
// ("data:application/pdf;base64,...") and returns the bytes with the mime
// type found in the URL, if any.
func DecodeAttachment(value string) ([]byte, string, error) {
	value = strings.TrimSpace(value)
	mimeType := ""
	if rest, ok := strings.CutPrefix(value, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		meta, isBase64 := strings.CutSuffix(header, ";base64")
		if !isBase64 {
			return nil, "", fmt.Errorf("data URL is not base64 encoded")
		}
		mimeType = meta
		value = payload
	}
	data, err := DecodeBase64String(value)
	if err != nil {
		return nil, "", fmt.Errorf("decode attachment: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("attachment is empty")
	}
	return data, mimeType, nil
}

package inbox

import (
	"encoding/base64"
	"unicode/utf8"
)

func EncodeBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(body)
}

func DecodeBody(bodyB64 string) ([]byte, error) {
	if bodyB64 == "" {
		return []byte{}, nil
	}
	return base64.StdEncoding.DecodeString(bodyB64)
}

// DecodedSize is the byte length of the original body. Malformed input
// reports 0.
func DecodedSize(bodyB64 string) int {
	body, err := DecodeBody(bodyB64)
	if err != nil {
		return 0
	}
	return len(body)
}

// DisplayBody returns the body as text when the decoded bytes are valid
// UTF-8, otherwise the base64 form unchanged.
func DisplayBody(bodyB64 string) string {
	body, err := DecodeBody(bodyB64)
	if err != nil || !utf8.Valid(body) {
		return bodyB64
	}
	return string(body)
}

package redemption

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// 16 random bytes encode to 26 base32 characters: unguessable, and compact
// enough for a QR code
const codeBytesLen = 16

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewCode mints an opaque single-use redemption code
func NewCode() (string, error) {
	b := make([]byte, codeBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("error while generating redemption code: %w", err)
	}

	return codeEncoding.EncodeToString(b), nil
}

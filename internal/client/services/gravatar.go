package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const defaultAvatarSize = 80

// GravatarURL returns the avatar address for email. Gravatar accepts the
// SHA-256 of the trimmed, lower-cased address.
func GravatarURL(email string, size int) string {
	if size <= 0 {
		size = defaultAvatarSize
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d&d=identicon", hex.EncodeToString(sum[:]), size)
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// UserKey derives the document ID shared by a user and their decorator profile from the
// normalised email.
func UserKey(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

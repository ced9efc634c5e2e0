package bucket

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// shortHash returns a stable 16-hex-char digest of the input. Collisions are
// tolerable: bucket uniqueness is enforced by the storage backend at create
// time, not by the hash.
func shortHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// UserBucketName derives the deterministic bucket name for a user.
func UserBucketName(prefix, userID string) string {
	return sanitizePrefix(prefix) + "-" + shortHash(userID)
}

// ContactBucketName derives the deterministic bucket name for an anonymous
// contact. Contact buckets are not recorded in the mapping table; the name
// itself is the only handle.
func ContactBucketName(prefix, contactID string) string {
	return sanitizePrefix(prefix) + "-contact-" + shortHash(contactID)
}

func sanitizePrefix(prefix string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "ingest"
	}
	var b strings.Builder
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix leaves room for a
// future algorithm change.
const (
	DomainNotification = "claimledger/notification/v1"
)

// Digest computes SHA256(domain || 0x00 || data) as lowercase hex.
// The null separator prevents domain/data boundary ambiguity.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestValue canonically encodes v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, data), nil
}

// ChainDigest links an entry to its predecessor: the previous digest is
// folded into the hashed bytes so that rewriting any earlier entry breaks
// every later link. prev is "" for the first entry.
func ChainDigest(prev string, entry Object) (string, error) {
	linked := make(Object, len(entry)+1)
	for k, v := range entry {
		linked[k] = v
	}
	linked["prev"] = String(prev)
	return DigestValue(DomainNotification, linked)
}

package pinning

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
)

// HashPrefix is the only supported fingerprint scheme.
const HashPrefix = "sha256/"

// Fingerprint computes the pin string for one certificate: SHA-256 over the
// DER-encoded SubjectPublicKeyInfo, base64, prefixed with "sha256/".
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return HashPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// ChainFingerprints computes the pin strings of every certificate in a
// presented chain, leaf first.
func ChainFingerprints(chain []*x509.Certificate) []string {
	out := make([]string, 0, len(chain))
	for _, cert := range chain {
		out = append(out, Fingerprint(cert))
	}
	return out
}

// WellFormed reports whether s is a valid pin string: the "sha256/" prefix
// followed by exactly 44 base64 characters decoding to exactly 32 bytes.
func WellFormed(s string) bool {
	if len(s) != len(HashPrefix)+44 {
		return false
	}
	if s[:len(HashPrefix)] != HashPrefix {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(HashPrefix):])
	if err != nil {
		return false
	}
	return len(raw) == sha256.Size
}

// Package hashing computes content fingerprints.
//
// A fingerprint is the lowercase hex encoding of the SHA-256 digest of a
// byte stream. It is the deduplication key for blobs and the integrity check
// used when comparing a live tree against an archive.
package hashing

import (
	_ "crypto/sha256" // registers digest.SHA256
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// Algorithm is the digest algorithm behind every fingerprint.
const Algorithm = digest.SHA256

// Size is the length of a fingerprint in hex characters.
const Size = 64

// Fingerprint returns the fingerprint of data.
func Fingerprint(data []byte) string {
	return Algorithm.FromBytes(data).Encoded()
}

// FingerprintString returns the fingerprint of s.
func FingerprintString(s string) string {
	return Algorithm.FromString(s).Encoded()
}

// FingerprintReader streams r through the digester and returns its fingerprint.
func FingerprintReader(r io.Reader) (string, error) {
	d, err := Algorithm.FromReader(r)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}

// FingerprintFile returns the fingerprint of the file at path without
// loading it into memory.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := FingerprintReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

// Valid reports whether s is a well-formed fingerprint.
func Valid(s string) bool {
	return digest.NewDigestFromEncoded(Algorithm, s).Validate() == nil
}

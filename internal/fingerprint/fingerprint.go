// Package fingerprint identifies uploaded CV documents by content hash and
// normalized display name so that repeated uploads can be rejected.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Fingerprint is the identity of a single upload.
type Fingerprint struct {
	ContentHash string
	DisplayName string
}

// Record is the stored identity of an existing CV.
type Record struct {
	ID          string
	ContentHash string
	DisplayName string
}

// New builds the fingerprint of an upload from its raw bytes and the
// file name supplied by the client.
func New(raw []byte, fileName string) Fingerprint {
	return Fingerprint{
		ContentHash: ComputeFingerprint(raw),
		DisplayName: NormalizeDisplayName(fileName),
	}
}

// ComputeFingerprint returns the lowercase hex MD5 digest of raw.
// Identical bytes always produce the same 32 character string.
func ComputeFingerprint(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// ComputeFingerprintReader hashes everything readable from r and reports
// how many bytes were consumed.
func ComputeFingerprintReader(r io.Reader) (string, int64, error) {
	hasher := md5.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// DatedName builds the stored file label, dd-mm-yyyy-<displayName>.
// NormalizeDisplayName(DatedName(t, n)) == n for any normalized n.
func DatedName(t time.Time, displayName string) string {
	return t.Format("02-01-2006") + "-" + displayName
}

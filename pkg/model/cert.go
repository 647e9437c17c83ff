package model

import (
	"encoding/hex"
	"os"

	"golang.org/x/crypto/sha3"
)

// CreateServiceCert describes the TLS certificate and key material for a
// service's HTTPS listener. Hash is never supplied by a caller; it is
// always overwritten with the computed digest of the certificate file
// during defaults-merge.
type CreateServiceCert struct {
	Hash     string `json:"hash,omitempty"`
	CertPath string `json:"certPath" validate:"required"`
	KeyPath  string `json:"keyPath" validate:"required"`
}

// Equal compares two certs by path only, ignoring the cached hash.
func (c CreateServiceCert) Equal(other CreateServiceCert) bool {
	return c.CertPath == other.CertPath && c.KeyPath == other.KeyPath
}

// CertHash returns the "sha3:<hex>" fingerprint of the certificate file at
// path, read fresh from disk.
func CertHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashCertBytes(data), nil
}

func hashCertBytes(data []byte) string {
	sum := sha3.Sum256(data)
	h := hex.EncodeToString(sum[:])
	// sha3.Sum256 always yields an even-length digest, so this branch is
	// unreachable today; kept for forward compatibility with a future
	// variable-length digest.
	if len(h)%2 != 0 {
		h = "0" + h
	}
	return "sha3:" + h
}

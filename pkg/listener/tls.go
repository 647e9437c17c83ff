package listener

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/relayd/relayd/pkg/model"
)

// TLSOptions selects the ALPN protocol set offered by a service's HTTPS
// listener.
type TLSOptions struct {
	CertPath  string
	KeyPath   string
	HTTP1Only bool
	HTTP2Only bool
}

// LoadTLSConfig reads a PEM certificate chain and private key from disk and
// builds a *tls.Config with ALPN negotiation set per opts.
func LoadTLSConfig(opts TLSOptions) (*tls.Config, error) {
	certPEM, err := os.ReadFile(opts.CertPath)
	if err != nil {
		return nil, &model.TLSError{Op: "read cert", Err: err}
	}
	keyPEM, err := os.ReadFile(opts.KeyPath)
	if err != nil {
		return nil, &model.TLSError{Op: "read key", Err: err}
	}

	cert, err := buildCertificate(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   alpnProtocols(opts),
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func alpnProtocols(opts TLSOptions) []string {
	switch {
	case opts.HTTP1Only:
		return []string{"http/1.1"}
	case opts.HTTP2Only:
		return []string{"h2"}
	default:
		return []string{"h2", "http/1.1"}
	}
}

// buildCertificate parses the certificate chain and tries PKCS#1 first,
// then PKCS#8, for the private key, matching the fallback order of the
// reference proxy's key loader. Exactly one private key must be present.
func buildCertificate(certPEM, keyPEM []byte) (tls.Certificate, error) {
	var certDER [][]byte
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			certDER = append(certDER, block.Bytes)
		}
	}
	if len(certDER) == 0 {
		return tls.Certificate{}, &model.TLSError{Op: "parse cert", Err: fmt.Errorf("no certificates found in PEM file")}
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{Certificate: certDER, PrivateKey: key}, nil
}

func parsePrivateKey(keyPEM []byte) (any, error) {
	var keys []any
	rest := keyPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			keys = append(keys, k)
			continue
		}
		if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			keys = append(keys, k)
			continue
		}
	}
	switch len(keys) {
	case 0:
		return nil, &model.TLSError{Op: "parse key", Err: fmt.Errorf("missing server private key")}
	case 1:
		return keys[0], nil
	default:
		return nil, &model.TLSError{Op: "parse key", Err: fmt.Errorf("expected a single private key, found %d", len(keys))}
	}
}

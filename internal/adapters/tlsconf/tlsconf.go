// Package tlsconf builds the TLS configurations used by the server, the QUIC
// endpoint and the client.
package tlsconf

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	quic "github.com/quic-go/quic-go"
	"golang.org/x/crypto/sha3"
)

// ALPN is the application protocol negotiated on both transports.
const ALPN = "lwwboard"

const (
	quicKeepAlive     = 15 * time.Second
	quicHandshakeIdle = 10 * time.Second
)

// QUICConfig returns the QUIC transport parameters shared by the server
// endpoint and the client.
func QUICConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod:      quicKeepAlive,
		HandshakeIdleTimeout: quicHandshakeIdle,
	}
}

// DefaultHosts are the names a development certificate is issued for.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// ParseMinVersion maps "1.2" or "1.3" to the crypto/tls constant.
func ParseMinVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
}

// ServerConfig loads a PEM certificate and key from disk.
func ServerConfig(certFile, keyFile, minVersion string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair %s: %w", certFile, err)
	}
	return serverConfig(cert, minVersion)
}

// DevServerConfig serves a freshly generated self-signed certificate.
func DevServerConfig(minVersion string, hosts ...string) (*tls.Config, error) {
	cert, err := SelfSigned(hosts...)
	if err != nil {
		return nil, err
	}
	return serverConfig(cert, minVersion)
}

func serverConfig(cert tls.Certificate, minVersion string) (*tls.Config, error) {
	v, err := ParseMinVersion(minVersion)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   v,
		NextProtos:   []string{ALPN},
	}, nil
}

// ClientConfig returns a client configuration. With insecure set the server
// certificate is not verified; otherwise caFile, when given, replaces the
// system roots.
func ClientConfig(insecure bool, caFile, serverName string) (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{ALPN},
		ServerName: serverName,
	}
	if insecure {
		conf.InsecureSkipVerify = true //nolint:gosec // self-signed deployments
		return conf, nil
	}
	if caFile == "" {
		return conf, nil
	}
	pemBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCA, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrLoadCA, caFile)
	}
	conf.RootCAs = pool
	return conf, nil
}

// GenerateSelfSigned creates a PEM encoded ECDSA P-256 certificate and key
// valid for hosts. IP literals become IP SANs.
func GenerateSelfSigned(validFor time.Duration, hosts ...string) (certPEM, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"lwwboard"}, CommonName: hosts[0]},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// SelfSigned returns an in-memory certificate valid for one year.
func SelfSigned(hosts ...string) (tls.Certificate, error) {
	certPEM, keyPEM, err := GenerateSelfSigned(365*24*time.Hour, hosts...)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// Fingerprint returns the hex SHA3-256 digest of the leaf certificate.
func Fingerprint(conf *tls.Config) (string, error) {
	if conf == nil || len(conf.Certificates) == 0 || len(conf.Certificates[0].Certificate) == 0 {
		return "", ErrNoCertificate
	}
	return FingerprintDER(conf.Certificates[0].Certificate[0]), nil
}

// FingerprintDER returns the hex SHA3-256 digest of a DER certificate.
func FingerprintDER(der []byte) string {
	sum := sha3.Sum256(der)
	return hex.EncodeToString(sum[:])
}

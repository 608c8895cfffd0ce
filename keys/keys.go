// Package keys manages the process-wide Ed25519 signing keypair.
//
// LoadOrGenerate runs once at startup and never on a request path. The
// returned Pair is immutable and safe to share read-only across
// goroutines for the process lifetime.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidKeyMaterial is returned when supplied or persisted key
// material cannot be decoded into an Ed25519 private key.
var ErrInvalidKeyMaterial = errors.New("invalid signing key material")

// Pair holds the Ed25519 signing keypair.
type Pair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// Config selects the key source, in precedence order: explicit material,
// then a PEM file on disk (generated and persisted when absent), then an
// ephemeral in-process keypair.
type Config struct {
	// PrivateKey is raw Ed25519 key material: a 64-byte private key,
	// a 32-byte seed, or a PEM-encoded PKCS#8 block.
	PrivateKey []byte

	// File is the path of a PEM-encoded PKCS#8 private key. When the
	// file does not exist a fresh keypair is generated and written
	// there with mode 0600.
	File string
}

// LoadOrGenerate resolves the signing keypair from cfg.
func LoadOrGenerate(cfg Config) (*Pair, error) {
	if len(cfg.PrivateKey) > 0 {
		priv, err := parsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		return pairFrom(priv), nil
	}

	if cfg.File != "" {
		return loadOrCreateFile(cfg.File)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return pairFrom(priv), nil
}

func pairFrom(priv ed25519.PrivateKey) *Pair {
	return &Pair{
		Private: priv,
		Public:  priv.Public().(ed25519.PublicKey),
	}
}

func loadOrCreateFile(path string) (*Pair, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		priv, parseErr := parsePrivateKey(data)
		if parseErr != nil {
			return nil, fmt.Errorf("key file %s: %w", path, parseErr)
		}
		return pairFrom(priv), nil
	case errors.Is(err, os.ErrNotExist):
		// fall through to generation
	default:
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	encoded, err := encodePEM(priv)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return nil, fmt.Errorf("persist key file %s: %w", path, err)
	}

	return pairFrom(priv), nil
}

func parsePrivateKey(material []byte) (ed25519.PrivateKey, error) {
	switch len(material) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(append([]byte(nil), material...)), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(material), nil
	}

	block, _ := pem.Decode(material)
	if block == nil {
		return nil, ErrInvalidKeyMaterial
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrInvalidKeyMaterial
	}
	return priv, nil
}

func encodePEM(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("encode signing key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

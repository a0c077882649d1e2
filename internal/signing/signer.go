// Package signing produces and verifies approval signatures.
//
// Every identity gets a deterministic ed25519 key derived with HKDF-SHA256
// from the service signing secret, so a signature can be re-verified later
// without storing private keys. The signed payload binds the asset to the
// proposed new owner: "<asset_id>|<new_owner>".
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// hkdfSalt domain-separates approval keys from any other use of the secret.
const hkdfSalt = "ams/approval-signing/v1"

// minSecretLen matches the JWT secret minimum enforced by config.
const minSecretLen = 32

var (
	ErrSecretTooShort   = errors.New("signing: secret must be at least 32 bytes")
	ErrInvalidSignature = errors.New("signing: signature does not verify")
)

// Signer derives per-identity keys from a shared secret.
// It is safe for concurrent use.
type Signer struct {
	secret []byte

	mu   sync.Mutex
	keys map[string]ed25519.PrivateKey
}

// New creates a Signer for the given secret.
func New(secret string) (*Signer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	return &Signer{
		secret: []byte(secret),
		keys:   make(map[string]ed25519.PrivateKey),
	}, nil
}

// Payload returns the canonical bytes signed for an approval.
func Payload(assetID, newOwner string) []byte {
	return []byte(assetID + "|" + newOwner)
}

// Sign returns the base64 signature of identity over (assetID, newOwner).
func (s *Signer) Sign(identity, assetID, newOwner string) (string, error) {
	key, err := s.key(identity)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(key, Payload(assetID, newOwner))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a signature produced by Sign.
func (s *Signer) Verify(identity, assetID, newOwner, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	pub, err := s.PublicKey(identity)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, Payload(assetID, newOwner), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// PublicKey returns the verification key of identity.
func (s *Signer) PublicKey(identity string) (ed25519.PublicKey, error) {
	key, err := s.key(identity)
	if err != nil {
		return nil, err
	}
	pub, _ := key.Public().(ed25519.PublicKey) //nolint:errcheck // ed25519 keys always return ed25519.PublicKey
	return pub, nil
}

func (s *Signer) key(identity string) (ed25519.PrivateKey, error) {
	if identity == "" {
		return nil, errors.New("signing: identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[identity]; ok {
		return k, nil
	}

	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, s.secret, []byte(hkdfSalt), []byte(identity))
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("deriving key for %s: %w", identity, err)
	}
	k := ed25519.NewKeyFromSeed(seed)
	s.keys[identity] = k
	return k, nil
}

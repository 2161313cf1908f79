package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
)

// SigningKey is an Ed25519 identity key pair. Signing is deterministic: the
// same key and message always produce the same 64-byte signature.
type SigningKey struct {
	seed    [32]byte
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// GenerateSigningKey creates a new random SigningKey.
func GenerateSigningKey() (SigningKey, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return SigningKey{}, err
	}
	return SigningKeyFromSeed(seed)
}

// SigningKeyFromSeed deterministically derives a SigningKey from a 32-byte
// seed (the "secret key" of spec.md §4.2).
func SigningKeyFromSeed(seed [32]byte) (SigningKey, error) {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	return SigningKey{seed: seed, private: priv, public: pub}, nil
}

// Seed returns the 32-byte secret seed.
func (k SigningKey) Seed() [32]byte { return k.seed }

// PublicKey returns the 32-byte Ed25519 public key.
func (k SigningKey) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], k.public)
	return pk
}

// Sign produces a deterministic 64-byte Ed25519 signature over message.
func (k SigningKey) Sign(message []byte) [64]byte {
	sig := ed25519.Sign(k.private, message)
	var out [64]byte
	copy(out[:], sig)
	return out
}

// PublicKey is a 32-byte Ed25519 public key.
type PublicKey [32]byte

// Verify checks sig over message against pub. Returns ErrSignatureInvalid
// (never a panic) on any mismatch, including malformed inputs.
func Verify(pub PublicKey, message []byte, sig [64]byte) error {
	if !ed25519.Verify(pub[:], message, sig[:]) {
		return ErrSignatureInvalid
	}
	return nil
}

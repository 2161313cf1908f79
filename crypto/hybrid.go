package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// SealedBundle is the output of hybrid-encrypting a payload to a
// recipient's long-term X25519 public key: an ephemeral public key, a
// nonce, and the AEAD ciphertext.
type SealedBundle struct {
	EphemeralPublic [32]byte
	Nonce           [24]byte
	Ciphertext      []byte
}

// SealToRecipient hybrid-encrypts plaintext for recipientPublic: an
// ephemeral X25519 key is generated, combined with recipientPublic via
// ECDH, and the shared secret is expanded with HKDF into an AEAD key used
// to seal plaintext. Used for distributing policy bundles and zone keys
// (spec.md §4.2).
func SealToRecipient(recipientPublic [32]byte, plaintext []byte) (SealedBundle, error) {
	eph, err := GenerateX25519KeyPair()
	if err != nil {
		return SealedBundle{}, err
	}
	shared, err := eph.SharedSecret(recipientPublic)
	if err != nil {
		return SealedBundle{}, err
	}
	key, err := deriveAEADKey(shared, eph.PublicKey(), recipientPublic)
	if err != nil {
		return SealedBundle{}, err
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return SealedBundle{}, err
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return SealedBundle{}, newErr(ReasonInvalidKeyLength, err.Error())
	}

	return SealedBundle{
		EphemeralPublic: eph.PublicKey(),
		Nonce:           nonce,
		Ciphertext:      aead.Seal(nil, nonce[:], plaintext, nil),
	}, nil
}

// OpenSealed reverses SealToRecipient given the recipient's long-term
// X25519 private key. Any failure, including a wrong key, collapses to
// the single opaque ErrDecryptionFailed.
func OpenSealed(recipientPrivate [32]byte, sealed SealedBundle) ([]byte, error) {
	shared, err := curve25519.X25519(recipientPrivate[:], sealed.EphemeralPublic[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	var sharedArr [32]byte
	copy(sharedArr[:], shared)

	recipientPublic, err := curve25519.X25519(recipientPrivate[:], curve25519.Basepoint)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	var recipientPublicArr [32]byte
	copy(recipientPublicArr[:], recipientPublic)

	key, err := deriveAEADKey(sharedArr, sealed.EphemeralPublic, recipientPublicArr)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, sealed.Nonce[:], sealed.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func deriveAEADKey(shared, ephemeralPublic, recipientPublic [32]byte) ([32]byte, error) {
	salt := blake3.Sum256(append(append([]byte{}, ephemeralPublic[:]...), recipientPublic[:]...))
	kdf := hkdf.New(sha256.New, shared[:], salt[:], []byte("fcp-mesh-hybrid-seal-v1"))
	var key [32]byte
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return [32]byte{}, err
	}
	return key, nil
}

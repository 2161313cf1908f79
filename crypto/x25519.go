package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// X25519KeyPair is an ephemeral key-agreement key pair.
type X25519KeyPair struct {
	private [32]byte
	public  [32]byte
}

// GenerateX25519KeyPair creates a new random ephemeral X25519 key pair.
func GenerateX25519KeyPair() (X25519KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return X25519KeyPair{}, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return X25519KeyPair{}, err
	}
	var kp X25519KeyPair
	kp.private = priv
	copy(kp.public[:], pub)
	return kp, nil
}

// PublicKey returns the 32-byte X25519 public key.
func (kp X25519KeyPair) PublicKey() [32]byte { return kp.public }

// Private returns the 32-byte X25519 private scalar, for callers that need
// to hold a long-term key across process restarts (e.g. OpenSealed).
func (kp X25519KeyPair) Private() [32]byte { return kp.private }

// SharedSecret computes the X25519 shared secret between kp's private key
// and peerPublic.
func (kp X25519KeyPair) SharedSecret(peerPublic [32]byte) ([32]byte, error) {
	shared, err := curve25519.X25519(kp.private[:], peerPublic[:])
	if err != nil {
		return [32]byte{}, newErr(ReasonInvalidKeyLength, err.Error())
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}

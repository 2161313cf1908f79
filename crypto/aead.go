package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"
)

// FrameAAD is the associated data bound into every session frame: the
// direction and position of the frame within its session, so a frame
// cannot be replayed at a different position or direction without
// detection.
type FrameAAD struct {
	SessionID [16]byte
	Direction byte // 0 = initiator->responder, 1 = responder->initiator
	Epoch     uint32
	Sequence  uint64
}

// Bytes renders the AAD in a fixed, deterministic layout.
func (a FrameAAD) Bytes() []byte {
	buf := make([]byte, 0, 16+1+4+8)
	buf = append(buf, a.SessionID[:]...)
	buf = append(buf, a.Direction)
	var epoch [4]byte
	binary.BigEndian.PutUint32(epoch[:], a.Epoch)
	buf = append(buf, epoch[:]...)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], a.Sequence)
	buf = append(buf, seq[:]...)
	return buf
}

// SessionAEAD seals and opens session frames with a 32-byte key and
// 12-byte nonces. The caller is responsible for nonce uniqueness within a
// session (see NonceSequence).
type SessionAEAD struct {
	key [32]byte
}

// NewSessionAEAD constructs a SessionAEAD from a 32-byte key.
func NewSessionAEAD(key [32]byte) SessionAEAD {
	return SessionAEAD{key: key}
}

// Seal encrypts and authenticates plaintext with the given 12-byte nonce
// and AAD, returning ciphertext||tag.
func (s SessionAEAD) Seal(nonce [12]byte, aad FrameAAD, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, newErr(ReasonInvalidKeyLength, err.Error())
	}
	return aead.Seal(nil, nonce[:], plaintext, aad.Bytes()), nil
}

// Open verifies and decrypts a sealed frame. On any failure — bad tag,
// wrong AAD, wrong key — it returns the single opaque ErrDecryptionFailed,
// never distinguishing the cause.
func (s SessionAEAD) Open(nonce [12]byte, aad FrameAAD, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, newErr(ReasonInvalidKeyLength, err.Error())
	}
	plaintext, err := aead.Open(nil, nonce[:], sealed, aad.Bytes())
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// NonceSequence hands out monotonically increasing 12-byte nonces for one
// session direction (the epoch followed by a counter), so one sequence
// never yields the same nonce twice. It does not see nonces obtained
// elsewhere: SessionAEAD.Seal accepts whatever nonce it is given.
type NonceSequence struct {
	epoch uint32
	next  uint64
}

// NewNonceSequence starts a nonce sequence for the given epoch.
func NewNonceSequence(epoch uint32) *NonceSequence {
	return &NonceSequence{epoch: epoch}
}

// Next returns the next nonce in sequence. It never repeats a value for
// the lifetime of the NonceSequence.
func (n *NonceSequence) Next() [12]byte {
	var nonce [12]byte
	binary.BigEndian.PutUint32(nonce[0:4], n.epoch)
	binary.BigEndian.PutUint64(nonce[4:12], n.next)
	n.next++
	return nonce
}

type replayKey struct {
	epoch    uint32
	sequence uint64
}

// ReplayGuard detects reuse of a (epoch, sequence) pair within a session,
// the receive-side half of nonce-reuse rejection.
type ReplayGuard struct {
	seen map[replayKey]struct{}
}

// NewReplayGuard constructs an empty guard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{seen: make(map[replayKey]struct{})}
}

// Observe records sequence and returns ErrReplayDetected if it has already
// been observed in this epoch.
func (g *ReplayGuard) Observe(epoch uint32, sequence uint64) error {
	key := replayKey{epoch: epoch, sequence: sequence}
	if _, ok := g.seen[key]; ok {
		return ErrReplayDetected
	}
	g.seen[key] = struct{}{}
	return nil
}

// FrameMAC computes a keyed HMAC-SHA256 tag over a session frame's
// ciphertext and explicit AAD, independent of the AEAD's own integrity
// tag, for transports that need to authenticate a frame before attempting
// the (more expensive) AEAD open.
func FrameMAC(key [32]byte, aad FrameAAD, ciphertext []byte) [32]byte {
	mac := hmac.New(sha256.New, key[:])
	_, _ = mac.Write(aad.Bytes())
	_, _ = mac.Write(ciphertext)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// VerifyFrameMAC checks tag in constant time.
func VerifyFrameMAC(key [32]byte, aad FrameAAD, ciphertext []byte, tag [32]byte) bool {
	expected := FrameMAC(key, aad, ciphertext)
	return hmac.Equal(expected[:], tag[:])
}

// Package cryptoutil implements the ECDH+HMAC handshake and session
// key derivation shared by the sender and receiver engines.
//
// Session key derivation is an intentional raw truncation of the
// ECDH shared secret rather than a KDF, preserved for wire
// compatibility: see the design notes this module is grounded on.
package cryptoutil

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"github.com/caesar-go/caesar/internal/transfererrors"
)

// SessionKeySize is the AES-128-GCM key length derived from the
// truncated ECDH shared secret.
const SessionKeySize = 16

// HMACSecretSize is the length of the out-of-band secret embedded in
// the invite code.
const HMACSecretSize = 32

// NewHMACSecret generates a fresh 32-byte out-of-band secret.
func NewHMACSecret() ([]byte, error) {
	secret := make([]byte, HMACSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// NewEphemeralKey generates a fresh P-256 ECDH key pair.
func NewEphemeralKey() (*ecdh.PrivateKey, error) {
	return ecdh.P256().GenerateKey(rand.Reader)
}

// Sign computes HMAC-SHA256(hmacSecret, publicKey), the signature
// carried alongside a public key in both Handshake and
// HandshakeResponse packets.
func Sign(hmacSecret, publicKey []byte) []byte {
	mac := hmac.New(sha256.New, hmacSecret)
	mac.Write(publicKey)
	return mac.Sum(nil)
}

// Verify checks a signature produced by Sign.
func Verify(hmacSecret, publicKey, signature []byte) bool {
	return hmac.Equal(Sign(hmacSecret, publicKey), signature)
}

// DeriveSessionKey computes the ECDH shared secret between own and
// peer, then truncates it to the first SessionKeySize bytes as the
// AES-128-GCM key. This is a raw truncation, not a KDF: it must be
// preserved exactly for interop with existing clients.
func DeriveSessionKey(own *ecdh.PrivateKey, peerPublic []byte) ([]byte, error) {
	peer, err := ecdh.P256().NewPublicKey(peerPublic)
	if err != nil {
		return nil, transfererrors.ErrBadSignature
	}
	shared, err := own.ECDH(peer)
	if err != nil {
		return nil, err
	}
	if len(shared) < SessionKeySize {
		return nil, transfererrors.ErrBadSignature
	}
	return shared[:SessionKeySize], nil
}

// Package crypto implements the Telink mesh session cryptography: the
// byte-reversed AES-128-ECB block primitive, session key agreement from the
// device name/password and two 8-byte nonces, and the per-packet
// encrypt/authenticate scheme applied to every 20-byte frame.
//
// The scheme is Telink-specific, not standard AES-CCM. The historical quirk
// of reversing key, input and output around the AES call is confined to
// EncryptBlock and DecryptBlock so the rest of the package reads naturally.
package crypto

import (
	"crypto/aes"
	"errors"
	"fmt"
)

var (
	// ErrCrypto indicates a failure of the AES primitive or a packet that
	// fails authentication.
	ErrCrypto = errors.New("telink/crypto: crypto failure")
	// ErrShortFrame indicates an inbound frame shorter than the 8 clear bytes.
	ErrShortFrame = errors.New("telink/crypto: short frame")
)

func reverse16(b [16]byte) [16]byte {
	var out [16]byte
	for i := range b {
		out[i] = b[15-i]
	}
	return out
}

// EncryptBlock encrypts a single 16-byte block with AES-128-ECB using the
// Telink convention: key, input and output are all byte-reversed around the
// cipher call.
func EncryptBlock(key, block [16]byte) ([16]byte, error) {
	rk := reverse16(key)
	rb := reverse16(block)
	c, err := aes.NewCipher(rk[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	var out [16]byte
	c.Encrypt(out[:], rb[:])
	return reverse16(out), nil
}

// DecryptBlock is the inverse of EncryptBlock.
func DecryptBlock(key, block [16]byte) ([16]byte, error) {
	rk := reverse16(key)
	rb := reverse16(block)
	c, err := aes.NewCipher(rk[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	var out [16]byte
	c.Decrypt(out[:], rb[:])
	return reverse16(out), nil
}

// MixNameKey combines the zero-padded device name and password into the
// 16-byte identity key by byte-wise XOR.
func MixNameKey(name, password [16]byte) [16]byte {
	var out [16]byte
	for i := range out {
		out[i] = name[i] ^ password[i]
	}
	return out
}

// SessionKey derives the shared session key from the identity key and the
// two 8-byte pairing nonces: AES(mix, local || remote).
func SessionKey(mix [16]byte, local, remote [8]byte) ([16]byte, error) {
	var block [16]byte
	copy(block[:8], local[:])
	copy(block[8:], remote[:])
	return EncryptBlock(mix, block)
}

// SealNonce encrypts the client's 8-byte nonce (padded with 8 zero bytes)
// under the identity key, producing the authenticator the device validates
// during pairing.
func SealNonce(mix [16]byte, local [8]byte) ([16]byte, error) {
	var block [16]byte
	copy(block[:8], local[:])
	return EncryptBlock(mix, block)
}

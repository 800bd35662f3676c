package telink

import "errors"

// Error kinds surfaced by the client. Crypto-layer failures are reported as
// crypto.ErrCrypto and crypto.ErrShortFrame from the crypto subpackage.
var (
	// ErrConfig indicates a malformed MAC address, an over-long name or
	// password, or a configuration change attempted at the wrong time.
	ErrConfig = errors.New("telink: invalid configuration")
	// ErrTransport indicates a BLE stack failure.
	ErrTransport = errors.New("telink: transport failure")
	// ErrRandom indicates the OS RNG refused to produce the pairing nonce.
	ErrRandom = errors.New("telink: random generator failure")
	// ErrHandshake indicates the pairing exchange failed.
	ErrHandshake = errors.New("telink: pairing handshake failed")
	// ErrNotConnected indicates an operation without a live session after
	// auto-reconnect failed.
	ErrNotConnected = errors.New("telink: not connected")
)

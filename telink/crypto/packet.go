package crypto

import "fmt"

// PacketSize is the fixed length of an encrypted command frame.
const PacketSize = 20

// clearBytes is the number of leading bytes a notification frame carries in
// the clear; the keystream covers the rest.
const clearBytes = 7

// PacketCipher encrypts, authenticates and decrypts 20-byte Telink frames
// with the session key. The IV is derived from the low bytes of the device
// MAC (little-endian) and the frame's packet counter, so the cipher is bound
// to one node session.
type PacketCipher struct {
	key  [16]byte
	addr [4]byte
}

// NewPacketCipher creates a cipher for one session. reversedMAC is the
// device MAC in little-endian byte order.
func NewPacketCipher(key [16]byte, reversedMAC [6]byte) *PacketCipher {
	c := &PacketCipher{key: key}
	copy(c.addr[:], reversedMAC[:4])
	return c
}

// Wipe clears the session key. The cipher must not be used afterwards.
func (c *PacketCipher) Wipe() {
	c.key = [16]byte{}
}

// EncryptPacket encrypts and authenticates a 20-byte command frame in place.
// Two MAC bytes land in p[3:5]; bytes p[5:20] are XORed with the keystream.
func (c *PacketCipher) EncryptPacket(p []byte) error {
	if len(p) != PacketSize {
		return fmt.Errorf("%w: packet must be %d bytes, got %d", ErrCrypto, PacketSize, len(p))
	}

	var authNonce [16]byte
	copy(authNonce[:4], c.addr[:])
	authNonce[4] = 0x01
	copy(authNonce[5:8], p[:3])
	authNonce[8] = 0x0F

	a, err := EncryptBlock(c.key, authNonce)
	if err != nil {
		return err
	}
	for i := 0; i < 15; i++ {
		a[i] ^= p[i+5]
	}
	mac, err := EncryptBlock(c.key, a)
	if err != nil {
		return err
	}
	p[3] = mac[0]
	p[4] = mac[1]

	s, err := EncryptBlock(c.key, c.commandIV(p[:3]))
	if err != nil {
		return err
	}
	for i := 0; i < 15; i++ {
		p[i+5] ^= s[i]
	}
	return nil
}

// DecryptPacket decrypts an inbound notification frame in place. The first
// 7 bytes are transmitted in the clear; the keystream is produced by the
// encrypt direction of the block cipher, CTR-style. Integrity is not
// re-verified here; callers must apply the vendor-code check before trusting
// the content.
func (c *PacketCipher) DecryptPacket(r []byte) error {
	if len(r) < 8 {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(r))
	}

	var iv [16]byte
	copy(iv[1:4], c.addr[:3])
	copy(iv[4:9], r[:5])

	s, err := EncryptBlock(c.key, iv)
	if err != nil {
		return err
	}
	n := len(r) - clearBytes
	if n > 16 {
		n = 16
	}
	for i := 0; i < n; i++ {
		r[i+clearBytes] ^= s[i]
	}
	return nil
}

// DecryptCommand reverses EncryptPacket in place and verifies the two MAC
// bytes, restoring the original plaintext frame. This is the device-side
// view of a command frame; the client never calls it, the tests use it to
// validate the encrypt path.
func (c *PacketCipher) DecryptCommand(p []byte) error {
	if len(p) != PacketSize {
		return fmt.Errorf("%w: packet must be %d bytes, got %d", ErrCrypto, PacketSize, len(p))
	}

	s, err := EncryptBlock(c.key, c.commandIV(p[:3]))
	if err != nil {
		return err
	}
	for i := 0; i < 15; i++ {
		p[i+5] ^= s[i]
	}

	mac0, mac1 := p[3], p[4]
	p[3], p[4] = 0, 0

	var authNonce [16]byte
	copy(authNonce[:4], c.addr[:])
	authNonce[4] = 0x01
	copy(authNonce[5:8], p[:3])
	authNonce[8] = 0x0F

	a, err := EncryptBlock(c.key, authNonce)
	if err != nil {
		return err
	}
	for i := 0; i < 15; i++ {
		a[i] ^= p[i+5]
	}
	mac, err := EncryptBlock(c.key, a)
	if err != nil {
		return err
	}
	if mac[0] != mac0 || mac[1] != mac1 {
		return fmt.Errorf("%w: packet authentication failed", ErrCrypto)
	}
	return nil
}

// commandIV builds the keystream IV for command frames from the three clear
// counter bytes.
func (c *PacketCipher) commandIV(head []byte) [16]byte {
	var iv [16]byte
	copy(iv[1:5], c.addr[:])
	iv[5] = 0x01
	copy(iv[6:9], head[:3])
	return iv
}

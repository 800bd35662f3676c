package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testCipher(t *testing.T) *PacketCipher {
	t.Helper()
	var key [16]byte
	copy(key[:], "test session key")
	// AA:BB:CC:DD:EE:FF reversed.
	mac := [6]byte{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA}
	return NewPacketCipher(key, mac)
}

func testFrame() []byte {
	p := make([]byte, PacketSize)
	p[0] = 0x01 // counter
	p[7] = 0xF0 // command
	p[8] = 0x11 // vendor
	p[9] = 0x02
	p[10] = 0x01 // payload
	return p
}

func TestEncryptPacketRoundTrip(t *testing.T) {
	c := testCipher(t)
	plain := testFrame()

	p := make([]byte, PacketSize)
	copy(p, plain)
	if err := c.EncryptPacket(p); err != nil {
		t.Fatalf("EncryptPacket() error = %v", err)
	}
	if bytes.Equal(p, plain) {
		t.Fatal("EncryptPacket() left the frame unchanged")
	}
	// Counter bytes travel in the clear; the MAC lands in bytes 3..5.
	if p[0] != plain[0] || p[1] != plain[1] || p[2] != plain[2] {
		t.Errorf("clear header mutated: % x", p[:3])
	}
	if p[3] == 0 && p[4] == 0 {
		t.Error("MAC bytes not written")
	}

	if err := c.DecryptCommand(p); err != nil {
		t.Fatalf("DecryptCommand() error = %v", err)
	}
	if !bytes.Equal(p, plain) {
		t.Errorf("round trip = % x, want % x", p, plain)
	}
}

func TestDecryptCommandRejectsTampering(t *testing.T) {
	c := testCipher(t)
	p := testFrame()
	if err := c.EncryptPacket(p); err != nil {
		t.Fatalf("EncryptPacket() error = %v", err)
	}
	p[12] ^= 0xFF
	if err := c.DecryptCommand(p); !errors.Is(err, ErrCrypto) {
		t.Errorf("DecryptCommand() on tampered frame = %v, want ErrCrypto", err)
	}
}

func TestEncryptPacketRequiresFullFrame(t *testing.T) {
	c := testCipher(t)
	if err := c.EncryptPacket(make([]byte, 19)); err == nil {
		t.Error("EncryptPacket() accepted a 19-byte frame")
	}
}

func TestDecryptPacketIsAnInvolution(t *testing.T) {
	c := testCipher(t)
	// Notification-style frame: 7 clear bytes, 13 ciphered.
	r := make([]byte, PacketSize)
	for i := range r {
		r[i] = byte(i * 7)
	}
	orig := make([]byte, PacketSize)
	copy(orig, r)

	if err := c.DecryptPacket(r); err != nil {
		t.Fatalf("DecryptPacket() error = %v", err)
	}
	if bytes.Equal(r, orig) {
		t.Fatal("DecryptPacket() left the frame unchanged")
	}
	if !bytes.Equal(r[:7], orig[:7]) {
		t.Error("clear bytes mutated")
	}
	if err := c.DecryptPacket(r); err != nil {
		t.Fatalf("second DecryptPacket() error = %v", err)
	}
	if !bytes.Equal(r, orig) {
		t.Errorf("involution failed: % x, want % x", r, orig)
	}
}

func TestDecryptPacketShortFrame(t *testing.T) {
	c := testCipher(t)
	if err := c.DecryptPacket(make([]byte, 7)); !errors.Is(err, ErrShortFrame) {
		t.Errorf("DecryptPacket(7 bytes) = %v, want ErrShortFrame", err)
	}
	if err := c.DecryptPacket(make([]byte, 8)); err != nil {
		t.Errorf("DecryptPacket(8 bytes) = %v, want nil", err)
	}
}

func TestKeystreamDependsOnCounter(t *testing.T) {
	c := testCipher(t)

	p1 := testFrame()
	p2 := testFrame()
	p2[0] = 0x02 // next counter value

	if err := c.EncryptPacket(p1); err != nil {
		t.Fatalf("EncryptPacket() error = %v", err)
	}
	if err := c.EncryptPacket(p2); err != nil {
		t.Fatalf("EncryptPacket() error = %v", err)
	}
	if bytes.Equal(p1[5:], p2[5:]) {
		t.Error("identical ciphertext for different counters")
	}
}

func TestWipeClearsKey(t *testing.T) {
	c := testCipher(t)
	c.Wipe()
	if c.key != ([16]byte{}) {
		t.Error("Wipe() left key material behind")
	}
}

package telink

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/vpaeder/telinkgo/ble"
	tcrypto "github.com/vpaeder/telinkgo/telink/crypto"
)

// Canned remote nonce the mock device answers the pairing request with.
var mockRemoteNonce = [8]byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}

// mockCharacteristic records writes, serves reads, and allows subscribing.
type mockCharacteristic struct {
	mu        sync.Mutex
	writes    [][]byte
	readValue []byte
	callback  func([]byte)
}

func (c *mockCharacteristic) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(c.readValue))
	copy(cp, c.readValue)
	return cp, nil
}

func (c *mockCharacteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

// SimulateNotification sends a notification to the subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *mockCharacteristic) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *mockCharacteristic) write(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(c.writes[i]))
	copy(cp, c.writes[i])
	return cp
}

// mockConnection simulates a BLE connection exposing the info service.
type mockConnection struct {
	mu           sync.Mutex
	chars        map[string]*mockCharacteristic
	disconnectCb func()
	disconnected bool
}

func newMockConnection(pairResponse []byte) *mockConnection {
	return &mockConnection{
		chars: map[string]*mockCharacteristic{
			ble.NotificationCharUUID: {},
			ble.CommandCharUUID:      {},
			ble.PairCharUUID:         {readValue: pairResponse},
		},
	}
}

func (c *mockConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if ch, ok := c.chars[charUUID]; ok {
		return ch, nil
	}
	return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
}

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *mockConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *mockConnection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *mockConnection) notifyChar() *mockCharacteristic { return c.chars[ble.NotificationCharUUID] }
func (c *mockConnection) commandChar() *mockCharacteristic { return c.chars[ble.CommandCharUUID] }
func (c *mockConnection) pairChar() *mockCharacteristic    { return c.chars[ble.PairCharUUID] }

// mockAdapter simulates the BLE adapter. Every Connect produces a fresh
// connection whose pairing characteristic answers with the canned nonce.
type mockAdapter struct {
	mu           sync.Mutex
	devices      []ble.Device
	connection   *mockConnection
	connectCount int
	connectErr   error
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context, _ string) ([]ble.Device, error) {
	return a.devices, nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	response := make([]byte, 17)
	response[0] = 0x0D
	copy(response[1:9], mockRemoteNonce[:])
	conn := newMockConnection(response)
	a.connection = conn
	a.connectCount++
	return conn, nil
}

// latestConnection returns the most recently created connection.
func (a *mockAdapter) latestConnection() *mockConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connection
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ ble.Adapter = (*mockAdapter)(nil)
}

func TestMockConnectionImplementsInterface(t *testing.T) {
	var _ ble.Connection = (*mockConnection)(nil)
}

func TestMockCharacteristicImplementsInterface(t *testing.T) {
	var _ ble.Characteristic = (*mockCharacteristic)(nil)
}

// Shared identity for the end-to-end tests, matching the reference vectors.
const (
	testMAC      = "AA:BB:CC:DD:EE:FF"
	testName     = "telink_mesh1"
	testPassword = "123"
)

// connectedLight pairs a Light against the mock transport.
func connectedLight(t *testing.T) (*Light, *mockAdapter) {
	t.Helper()
	adapter := newMockAdapter()
	light, err := NewLight(adapter, testMAC, testName, testPassword)
	if err != nil {
		t.Fatalf("NewLight() error = %v", err)
	}
	if err := light.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return light, adapter
}

// sessionCipher reconstructs the session packet cipher from the pairing
// request the mock captured, exactly as the device would.
func sessionCipher(t *testing.T, conn *mockConnection) *tcrypto.PacketCipher {
	t.Helper()
	pair := conn.pairChar()
	if pair.writeCount() == 0 {
		t.Fatal("no pairing request written")
	}
	request := pair.write(0)
	if len(request) != 17 {
		t.Fatalf("pairing request is %d bytes, want 17", len(request))
	}

	var local [8]byte
	copy(local[:], request[1:9])

	name, _ := pad16(testName)
	password, _ := pad16(testPassword)
	mix := tcrypto.MixNameKey(name, password)
	key, err := tcrypto.SessionKey(mix, local, mockRemoteNonce)
	if err != nil {
		t.Fatalf("SessionKey() error = %v", err)
	}

	mac, _ := ParseMAC(testMAC)
	return tcrypto.NewPacketCipher(key, reverseMAC(mac))
}

// commandPlaintext decrypts the i-th captured command frame.
func commandPlaintext(t *testing.T, conn *mockConnection, cipher *tcrypto.PacketCipher, i int) []byte {
	t.Helper()
	cmd := conn.commandChar()
	if cmd.writeCount() <= i {
		t.Fatalf("only %d command frames written, want index %d", cmd.writeCount(), i)
	}
	frame := cmd.write(i)
	if len(frame) != 20 {
		t.Fatalf("command frame is %d bytes, want 20", len(frame))
	}
	if err := cipher.DecryptCommand(frame); err != nil {
		t.Fatalf("DecryptCommand() error = %v", err)
	}
	return frame
}

// reportFrame builds a plaintext report frame with the Telink vendor code,
// targeting the connected node.
func reportFrame(cmd byte) []byte {
	f := make([]byte, 20)
	f[7] = cmd
	f[8] = 0x11
	f[9] = 0x02
	return f
}

// deliverReport enciphers a plaintext report the way the device would and
// feeds it through the notification characteristic.
func deliverReport(t *testing.T, conn *mockConnection, cipher *tcrypto.PacketCipher, plain []byte) {
	t.Helper()
	frame := make([]byte, len(plain))
	copy(frame, plain)
	// Notification ciphering is a keystream XOR, so enciphering is the same
	// operation as deciphering.
	if err := cipher.DecryptPacket(frame); err != nil {
		t.Fatalf("encipher report: %v", err)
	}
	conn.notifyChar().SimulateNotification(frame)
}

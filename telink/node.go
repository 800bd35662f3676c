// Package telink is a client for Telink-protocol Bluetooth LE mesh lighting
// devices. A Node pairs with one mesh node over a GATT connection and can
// address that node, another unit, or a group through it; a Light layers
// lighting semantics on top. All command and notification traffic is
// enciphered with a session key derived during pairing.
package telink

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vpaeder/telinkgo/ble"
	tcrypto "github.com/vpaeder/telinkgo/telink/crypto"
	"github.com/vpaeder/telinkgo/telink/protocol"
)

// connectTimeout bounds BLE discovery during Connect.
const connectTimeout = 10 * time.Second

// Node is a session with one Telink mesh node. A Node addresses the
// connected node directly (mesh id 0), a unit (1..254), or a group
// (0x8000..0x80FF) reached through it.
//
// One goroutine issues commands while the transport delivers notifications
// on its own goroutine; the session state is serialized under one mutex.
type Node struct {
	mu       sync.Mutex
	addr     [6]byte
	revAddr  [6]byte
	addrStr  string
	name     [16]byte
	password [16]byte

	frame  protocol.FrameBuilder
	cipher *tcrypto.PacketCipher

	adapter                           ble.Adapter
	conn                              ble.Connection
	notifyChar, commandChar, pairChar ble.Characteristic
	connected                         bool

	handlers Handlers
	// claim gives an outer layer first chance at a dispatched report.
	claim  func(cmd byte, frame []byte, h Handlers) bool
	logger *slog.Logger
}

// NewNode creates a session for the node with the given MAC address,
// mesh name and password. Nothing is contacted until Connect.
func NewNode(adapter ble.Adapter, address, name, password string) (*Node, error) {
	mac, err := ParseMAC(address)
	if err != nil {
		return nil, err
	}
	paddedName, err := pad16(name)
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	paddedPassword, err := pad16(password)
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	return &Node{
		addr:     mac,
		revAddr:  reverseMAC(mac),
		addrStr:  address,
		name:     paddedName,
		password: paddedPassword,
		frame:    protocol.FrameBuilder{Counter: 1, Vendor: protocol.DefaultVendor},
		adapter:  adapter,
		logger:   slog.Default().With("component", "telink", "device", address),
	}, nil
}

// SetAddress changes the target MAC address. Refused while connected.
func (n *Node) SetAddress(address string) error {
	mac, err := ParseMAC(address)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.connected {
		return fmt.Errorf("%w: address change requires disconnect", ErrConfig)
	}
	n.addr = mac
	n.revAddr = reverseMAC(mac)
	n.addrStr = address
	n.logger = slog.Default().With("component", "telink", "device", address)
	return nil
}

// SetName changes the mesh name used for key derivation. While connected
// the change only takes effect on the next reconnect.
func (n *Node) SetName(name string) error {
	padded, err := pad16(name)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.connected {
		n.logger.Warn("name change applies on next reconnect")
	}
	n.name = padded
	return nil
}

// SetPassword changes the mesh password used for key derivation. While
// connected the change only takes effect on the next reconnect.
func (n *Node) SetPassword(password string) error {
	padded, err := pad16(password)
	if err != nil {
		return fmt.Errorf("password: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.connected {
		n.logger.Warn("password change applies on next reconnect")
	}
	n.password = padded
	return nil
}

// SetVendor overrides the vendor code (0x0211 for Telink).
func (n *Node) SetVendor(vendor uint16) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frame.Vendor = vendor
}

// MeshID returns the mesh id the session currently addresses. Zero means
// the connected node itself.
func (n *Node) MeshID() uint16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frame.MeshID
}

// Connected reports whether a session is live.
func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// SetHandlers registers the report callbacks.
func (n *Node) SetHandlers(h Handlers) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = h
}

// Connect discovers the device, resolves the info service characteristics,
// runs the pairing handshake and enables notifications. Any failure leaves
// the session disconnected with no key material retained.
func (n *Node) Connect() error {
	n.mu.Lock()
	if n.connected {
		n.mu.Unlock()
		return fmt.Errorf("%w: already connected to %s", ErrConfig, n.addrStr)
	}
	adapter := n.adapter
	address := n.addrStr
	name, password := n.name, n.password
	revAddr := n.revAddr
	n.mu.Unlock()

	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("%w: enable adapter: %w", ErrHandshake, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	conn, err := adapter.Connect(ctx, address)
	if err != nil {
		return fmt.Errorf("%w: connect: %w", ErrHandshake, err)
	}

	notifyChar, err := conn.DiscoverCharacteristic(ble.InfoServiceUUID, ble.NotificationCharUUID)
	var commandChar, pairChar ble.Characteristic
	if err == nil {
		commandChar, err = conn.DiscoverCharacteristic(ble.InfoServiceUUID, ble.CommandCharUUID)
	}
	if err == nil {
		pairChar, err = conn.DiscoverCharacteristic(ble.InfoServiceUUID, ble.PairCharUUID)
	}
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("%w: discover characteristics: %w", ErrHandshake, err)
	}

	cipher, err := n.pair(pairChar, name, password, revAddr)
	if err != nil {
		conn.Disconnect()
		return err
	}

	n.mu.Lock()
	n.conn = conn
	n.notifyChar = notifyChar
	n.commandChar = commandChar
	n.pairChar = pairChar
	n.cipher = cipher
	n.connected = true
	n.mu.Unlock()

	conn.OnDisconnect(n.markDisconnected)

	if err := notifyChar.Subscribe(n.handleNotification); err != nil {
		n.Disconnect()
		return fmt.Errorf("%w: subscribe notifications: %w", ErrHandshake, err)
	}
	if err := notifyChar.Write([]byte{0x01}); err != nil {
		n.Disconnect()
		return fmt.Errorf("%w: enable notifications: %w", ErrHandshake, err)
	}

	n.logger.Info("connected")
	return nil
}

// pair runs the nonce exchange on the pairing characteristic and returns
// the session packet cipher.
func (n *Node) pair(pairChar ble.Characteristic, name, password [16]byte, revAddr [6]byte) (*tcrypto.PacketCipher, error) {
	var local [8]byte
	if _, err := rand.Read(local[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandom, err)
	}

	mix := tcrypto.MixNameKey(name, password)
	sealed, err := tcrypto.SealNonce(mix, local)
	if err != nil {
		return nil, fmt.Errorf("%w: seal nonce: %w", ErrHandshake, err)
	}

	request := make([]byte, 0, 17)
	request = append(request, 0x0C)
	request = append(request, local[:]...)
	request = append(request, sealed[:8]...)
	if err := pairChar.Write(request); err != nil {
		return nil, fmt.Errorf("%w: write pairing request: %w", ErrHandshake, err)
	}

	response, err := pairChar.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read pairing response: %w", ErrHandshake, err)
	}
	if len(response) < 9 {
		return nil, fmt.Errorf("%w: pairing response too short (%d bytes)", ErrHandshake, len(response))
	}
	var remote [8]byte
	copy(remote[:], response[1:9])

	key, err := tcrypto.SessionKey(mix, local, remote)
	if err != nil {
		return nil, fmt.Errorf("%w: derive session key: %w", ErrHandshake, err)
	}
	return tcrypto.NewPacketCipher(key, revAddr), nil
}

// markDisconnected drops the session state after a transport-level
// disconnect. The shared key is wiped with it.
func (n *Node) markDisconnected() {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return
	}
	n.clearSessionLocked()
	n.mu.Unlock()
	n.logger.Warn("device disconnected")
}

// clearSessionLocked wipes key material and handles; caller holds mu.
func (n *Node) clearSessionLocked() {
	if n.cipher != nil {
		n.cipher.Wipe()
	}
	n.cipher = nil
	n.conn = nil
	n.notifyChar = nil
	n.commandChar = nil
	n.pairChar = nil
	n.connected = false
}

// Disconnect terminates the session and wipes the shared key. Safe to call
// repeatedly and from deferred cleanup paths.
func (n *Node) Disconnect() error {
	n.mu.Lock()
	conn := n.conn
	n.clearSessionLocked()
	n.mu.Unlock()

	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
	return nil
}

// SendPacket builds, encrypts and writes one command frame. If the session
// has dropped it reconnects once; transport or crypto failures after that
// are logged and the frame is dropped, matching the fire-and-forget
// semantics of the mesh.
func (n *Node) SendPacket(cmd byte, payload []byte) error {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		n.logger.Warn("session down, reconnecting", "cmd", fmt.Sprintf("0x%02X", cmd))
		n.Disconnect()
		if err := n.Connect(); err != nil {
			return fmt.Errorf("%w: reconnect: %w", ErrNotConnected, err)
		}
		n.mu.Lock()
		if !n.connected {
			n.mu.Unlock()
			return ErrNotConnected
		}
	}
	frame := n.frame.Build(cmd, payload)
	cipher := n.cipher
	commandChar := n.commandChar
	n.mu.Unlock()

	if err := cipher.EncryptPacket(frame[:]); err != nil {
		n.logger.Error("packet encryption failed", "err", err)
		return nil
	}
	if err := commandChar.Write(frame[:]); err != nil {
		n.logger.Error("packet write failed", "err", err)
	}
	return nil
}

// handleNotification decrypts and dispatches one inbound frame. Frames
// failing decryption, the vendor check or the addressing check are dropped
// without disturbing the notification goroutine.
func (n *Node) handleNotification(data []byte) {
	n.mu.Lock()
	cipher := n.cipher
	vendor := n.frame.Vendor
	n.mu.Unlock()
	if cipher == nil {
		return
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	if err := cipher.DecryptPacket(frame); err != nil {
		n.logger.Debug("dropping undecryptable frame", "err", err)
		return
	}
	if len(frame) < protocol.FrameSize {
		return
	}
	if !protocol.VendorMatches(frame, vendor) {
		return
	}

	cmd := frame[7]
	receivedID := protocol.ReceivedID(frame)

	n.mu.Lock()
	// The first online status report tells a fresh session its own mesh id.
	if cmd == protocol.CmdOnlineStatusReport && n.frame.MeshID == 0 {
		n.frame.MeshID = receivedID
	}
	meshID := n.frame.MeshID
	handlers := n.handlers
	claim := n.claim
	n.mu.Unlock()

	if receivedID != meshID && receivedID != 0 {
		return
	}

	if claim != nil && claim(cmd, frame, handlers) {
		return
	}

	switch cmd {
	case protocol.CmdTimeReport:
		if handlers.Time != nil {
			handlers.Time(protocol.DecodeTimeReport(frame))
		}
	case protocol.CmdAddressReport:
		if handlers.Address != nil {
			handlers.Address(protocol.DecodeAddressReport(frame))
		}
	case protocol.CmdDeviceInfoReport:
		if handlers.DeviceInfo != nil {
			handlers.DeviceInfo(protocol.DecodeDeviceInfoReport(frame))
		}
	case protocol.CmdGroupReport:
		if handlers.Groups != nil {
			handlers.Groups(protocol.DecodeGroupReport(frame))
		}
	}
}

// SetTime sets the device clock.
func (n *Node) SetTime(t time.Time) error {
	year := t.Year()
	return n.SendPacket(protocol.CmdTimeSet, []byte{
		byte(year), byte(year >> 8), byte(t.Month()), byte(t.Day()),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
	})
}

// QueryTime requests a time report.
func (n *Node) QueryTime() error {
	return n.SendPacket(protocol.CmdTimeQuery, []byte{0x10})
}

// QueryGroups requests the group membership report.
func (n *Node) QueryGroups() error {
	return n.SendPacket(protocol.CmdGroupQuery, []byte{0x0A, 0x01})
}

// AddGroup adds the addressed device to a group.
func (n *Node) AddGroup(group byte) error {
	return n.SendPacket(protocol.CmdGroupEdit, []byte{0x01, group, 0x80})
}

// DeleteGroup removes the addressed device from a group.
func (n *Node) DeleteGroup(group byte) error {
	return n.SendPacket(protocol.CmdGroupEdit, []byte{0x00, group, 0x80})
}

// SetMeshID assigns a mesh id: 1..254 for a unit, 0x8000..0x80FF for a
// group. The value is masked to 16 bits but not otherwise validated, so a
// caller can in principle address the 0xFFFF broadcast domain; the library
// never originates that itself.
func (n *Node) SetMeshID(id int) error {
	masked := uint16(id)
	n.mu.Lock()
	n.frame.MeshID = masked
	n.mu.Unlock()
	return n.SendPacket(protocol.CmdAddressEdit, []byte{byte(masked), byte(masked >> 8)})
}

// QueryMeshID requests an address report.
func (n *Node) QueryMeshID() error {
	return n.SendPacket(protocol.CmdAddressEdit, []byte{0xFF, 0xFF})
}

// QueryDeviceInfo requests a device info report.
func (n *Node) QueryDeviceInfo() error {
	return n.SendPacket(protocol.CmdDeviceInfoQuery, []byte{0x10})
}

// QueryDeviceVersion requests a firmware version report.
func (n *Node) QueryDeviceVersion() error {
	return n.SendPacket(protocol.CmdDeviceInfoQuery, []byte{0x10, 0x02})
}

// Reset restores the addressed device to factory defaults.
func (n *Node) Reset() error {
	return n.SendPacket(protocol.CmdReset, nil)
}

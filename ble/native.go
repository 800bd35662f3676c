package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// maxWriteLen is the largest value a Telink mesh characteristic accepts:
// an encrypted command frame fills the 20 usable bytes of the default
// ATT MTU exactly, and the pairing exchange stays under it (17 bytes).
const maxWriteLen = 20

// pairResponseLen is the size of the pairing characteristic value.
const pairResponseLen = 17

// NativeAdapter drives Telink mesh nodes through tinygo-org/bluetooth on
// the platform BLE stack (BlueZ on Linux, CoreBluetooth on macOS, WinRT on
// Windows). Connections resolve the Telink info service up front, so only
// the three mesh characteristics are reachable through it. Note that on
// macOS device addresses are CoreBluetooth UUIDs rather than MAC addresses;
// the MAC fields carry whatever string the platform uses to identify the
// peripheral.
type NativeAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*nativeConnection // keyed by device address
}

// NewNativeAdapter creates a BLE adapter backed by the default platform stack.
func NewNativeAdapter() *NativeAdapter {
	return &NativeAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*nativeConnection),
	}
}

func (a *NativeAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// Fan adapter-level disconnect events out to the affected connection.
	// tinygo/bluetooth fires this callback with connected=false when a
	// peripheral drops; the mesh session above uses it to invalidate its
	// key material.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[id]
		a.mu.Unlock()
		if ok && conn.disconnectCb != nil {
			conn.disconnectCb()
		}
	})

	return nil
}

// Scan reports peripherals advertising the given service until ctx expires.
// Mesh nodes re-advertise aggressively, so results are de-duplicated by
// address.
func (a *NativeAdapter) Scan(ctx context.Context, serviceUUID string) ([]Device, error) {
	uuid, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}

	seen := make(map[string]Device)
	var order []string

	// Stop the (blocking) scan when ctx expires, even if no advertisement
	// ever reaches the callback.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err = a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(uuid) {
			return
		}
		addr := result.Address.String()
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = Device{
			Name: result.LocalName(),
			MAC:  addr,
			RSSI: int(result.RSSI),
		}
		order = append(order, addr)
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}

	devices := make([]Device, 0, len(order))
	for _, addr := range order {
		devices = append(devices, seen[addr])
	}
	return devices, nil
}

// Connect establishes a connection and resolves the Telink info service and
// its notification, command and pairing characteristics in one pass. A
// peripheral that lacks the service is rejected here rather than at first
// use.
func (a *NativeAdapter) Connect(ctx context.Context, mac string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(mac)

	// The stack's Connect blocks with its own internal timeout and cannot
	// be cancelled; run it aside so ctx expiry returns promptly even if the
	// dial keeps going underneath.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	var device bluetooth.Device
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ble: connect to %s: %w", mac, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", mac, result.err)
		}
		device = result.device
	}

	conn := &nativeConnection{device: &device}
	if err := conn.resolveMeshService(); err != nil {
		device.Disconnect()
		return nil, err
	}

	// Track the connection so the adapter-level disconnect handler can find
	// it and fire its OnDisconnect callback.
	a.mu.Lock()
	a.connections[mac] = conn
	a.mu.Unlock()

	return conn, nil
}

// Compile-time check that NativeAdapter implements Adapter.
var _ Adapter = (*NativeAdapter)(nil)

type nativeConnection struct {
	device       *bluetooth.Device
	chars        map[string]*nativeCharacteristic
	disconnectCb func()
}

// resolveMeshService discovers the info service, then all three mesh
// characteristics in one characteristic discovery call.
func (c *nativeConnection) resolveMeshService() error {
	svcUUID, err := bluetooth.ParseUUID(InfoServiceUUID)
	if err != nil {
		return err
	}
	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return fmt.Errorf("ble: discover info service: %w", err)
	}
	if len(svcs) == 0 {
		return fmt.Errorf("ble: peripheral has no Telink info service %s", InfoServiceUUID)
	}

	wanted := []string{NotificationCharUUID, CommandCharUUID, PairCharUUID}
	uuids := make([]bluetooth.UUID, len(wanted))
	for i, s := range wanted {
		if uuids[i], err = bluetooth.ParseUUID(s); err != nil {
			return err
		}
	}
	chars, err := svcs[0].DiscoverCharacteristics(uuids)
	if err != nil {
		return fmt.Errorf("ble: discover mesh characteristics: %w", err)
	}
	if len(chars) != len(wanted) {
		return fmt.Errorf("ble: info service exposes %d of %d mesh characteristics", len(chars), len(wanted))
	}

	c.chars = make(map[string]*nativeCharacteristic, len(wanted))
	for i := range chars {
		c.chars[wanted[i]] = &nativeCharacteristic{char: &chars[i]}
	}
	return nil
}

// DiscoverCharacteristic serves the characteristics resolved at connect
// time; only the Telink info service is supported.
func (c *nativeConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	if serviceUUID != InfoServiceUUID {
		return nil, fmt.Errorf("ble: unsupported service %s", serviceUUID)
	}
	char, ok := c.chars[charUUID]
	if !ok {
		return nil, fmt.Errorf("ble: characteristic %s not part of the mesh service", charUUID)
	}
	return char, nil
}

func (c *nativeConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *nativeConnection) OnDisconnect(cb func()) {
	c.disconnectCb = cb
}

type nativeCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *nativeCharacteristic) Read() ([]byte, error) {
	buf := make([]byte, pairResponseLen)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write sends one frame without response, the write mode Telink nodes
// expect on the command and pairing characteristics. Frames are bounded by
// the mesh MTU; anything longer would be truncated by the peripheral, so
// it is rejected here instead.
func (c *nativeCharacteristic) Write(data []byte) error {
	if len(data) > maxWriteLen {
		return fmt.Errorf("ble: write of %d bytes exceeds the %d-byte mesh MTU", len(data), maxWriteLen)
	}
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *nativeCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}

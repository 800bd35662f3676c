// Package ble abstracts the Bluetooth LE transport used by the Telink mesh
// client. It defines the adapter, connection and characteristic interfaces
// the protocol layer depends on, plus a tinygo-org/bluetooth implementation.
package ble

import "context"

// Telink mesh GATT UUIDs. Every Telink mesh node exposes the info service
// with these three characteristics.
const (
	InfoServiceUUID      = "00010203-0405-0607-0809-0a0b0c0d1910"
	NotificationCharUUID = "00010203-0405-0607-0809-0a0b0c0d1911"
	CommandCharUUID      = "00010203-0405-0607-0809-0a0b0c0d1912"
	PairCharUUID         = "00010203-0405-0607-0809-0a0b0c0d1914"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Read reads the current characteristic value.
	Read() ([]byte, error)
	// Write sends data to the characteristic.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	// Implementations must invoke the callback sequentially per device.
	Subscribe(callback func(data []byte)) error
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name string
	MAC  string
	RSSI int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals advertising the given service UUID.
	// Returns discovered devices until ctx is cancelled or timeout.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device with the given MAC address.
	Connect(ctx context.Context, mac string) (Connection, error)
}

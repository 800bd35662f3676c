// Package protocol implements the Telink mesh frame layout and the
// command/report codec: outbound 20-byte frames carrying a packet counter,
// mesh id, command code, vendor code and payload, and the typed decoding of
// inbound report frames.
package protocol

// Command and report codes. All frames carry one of these at byte 7.
const (
	CmdScenarioQuery      = 0xC0
	CmdScenarioReport     = 0xC1
	CmdScenarioLoad       = 0xF2
	CmdScenarioEdit       = 0xF3
	CmdGroupQuery         = 0xDD
	CmdGroupReport        = 0xD4
	CmdGroupEdit          = 0xD7
	CmdStatusQuery        = 0xDA
	CmdStatusReport       = 0xDB
	CmdOnlineStatusReport = 0xDC
	CmdAddressEdit        = 0xE0
	CmdAddressReport      = 0xE1
	CmdReset              = 0xE3
	CmdTimeSet            = 0xE4
	CmdAlarmEdit          = 0xE5
	CmdAlarmQuery         = 0xE6
	CmdAlarmReport        = 0xE7
	CmdTimeQuery          = 0xE8
	CmdTimeReport         = 0xE9
	CmdDeviceInfoQuery    = 0xEA
	CmdDeviceInfoReport   = 0xEB
	CmdLightOnOff         = 0xF0
	CmdLightAttributes    = 0xF1
)

// DefaultVendor is the Telink vendor code.
const DefaultVendor = 0x0211

// Built-in scenario IDs. IDs 0x00..0x03 are the user-editable slots; the
// rest are firmware presets.
const (
	ScenarioCustom1        = 0x00
	ScenarioCustom2        = 0x01
	ScenarioCustom3        = 0x02
	ScenarioCustom4        = 0x03
	ScenarioJump           = 0x81
	ScenarioGradient       = 0x82
	ScenarioFrequency      = 0x83
	ScenarioLoop           = 0x84
	ScenarioMorning        = 0x85
	ScenarioNoon           = 0x86
	ScenarioDinner         = 0x87
	ScenarioWarn           = 0x88
	ScenarioCold           = 0x89
	Scenario6ColorGradient = 0x8A
	Scenario6ColorJump     = 0x8B
	ScenarioWhite          = 0x8C
	ScenarioRedGradient    = 0x8D
	ScenarioSea            = 0x8E
	Scenario3ColorJump     = 0x8F
	Scenario3ColorGradient = 0x90
	Scenario7ColorJump     = 0x91
	Scenario7ColorGradient = 0x92
	ScenarioRGBMorning     = 0x93
	ScenarioRGBNoon        = 0x94
	ScenarioRGBDinner      = 0x95
	ScenarioForest         = 0x96
	ScenarioFlame          = 0x97
	ScenarioRelax          = 0x98
	ScenarioWork           = 0x99
	ScenarioDefault        = 0xFF
)

// FrameSize is the length of every command and report frame.
const FrameSize = 20

// FrameBuilder assembles outbound plaintext frames. The caller serializes
// access; the packet counter runs 1..0xFFFF and wraps back to 1.
type FrameBuilder struct {
	Counter uint32
	MeshID  uint16
	Vendor  uint16
}

// Build lays out a plaintext frame and advances the counter.
//
//	bytes 0-1  packet counter (little-endian)
//	bytes 2-4  zero; MAC bytes land in 3..5 after encryption
//	bytes 5-6  mesh id (little-endian)
//	byte  7    command code
//	bytes 8-9  vendor code (little-endian)
//	bytes 10-  payload, right-zero-padded
//
// Payloads longer than 10 bytes are truncated at the frame edge; the
// scenario edit steps rely on this to shed their two trailing zero bytes.
func (b *FrameBuilder) Build(cmd byte, payload []byte) [FrameSize]byte {
	var f [FrameSize]byte
	f[0] = byte(b.Counter)
	f[1] = byte(b.Counter >> 8)
	f[5] = byte(b.MeshID)
	f[6] = byte(b.MeshID >> 8)
	f[7] = cmd
	f[8] = byte(b.Vendor)
	f[9] = byte(b.Vendor >> 8)
	copy(f[10:], payload)

	b.Counter++
	if b.Counter > 0xFFFF {
		b.Counter = 1
	}
	return f
}

// VendorMatches reports whether a decrypted inbound frame carries the given
// vendor code. Frames that do not are dropped silently.
func VendorMatches(frame []byte, vendor uint16) bool {
	return frame[8] == byte(vendor) && frame[9] == byte(vendor>>8)
}

// ReceivedID extracts the mesh id an inbound frame targets. Online status
// reports carry it in the payload; every other report carries it in byte 3.
func ReceivedID(frame []byte) uint16 {
	if frame[7] == CmdOnlineStatusReport {
		return uint16(frame[10])
	}
	return uint16(frame[3])
}

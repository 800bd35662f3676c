package telink

import (
	"sync"

	"github.com/vpaeder/telinkgo/ble"
	"github.com/vpaeder/telinkgo/telink/protocol"
)

// Light is a session with a Telink mesh lighting device. It adds power,
// brightness, color, white-point, scenario and alarm control on top of the
// generic mesh operations, and keeps a local mirror of the light state
// updated from status reports.
type Light struct {
	*Node

	stateMu    sync.Mutex
	on         bool
	brightness byte
	musicMode  bool
}

// NewLight creates a session for the light with the given MAC address,
// mesh name and password.
func NewLight(adapter ble.Adapter, address, name, password string) (*Light, error) {
	node, err := NewNode(adapter, address, name, password)
	if err != nil {
		return nil, err
	}
	l := &Light{Node: node}
	node.claim = l.parseCommand
	return l, nil
}

// On reports the last known power state.
func (l *Light) On() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.on
}

// Brightness reports the last known brightness percentage.
func (l *Light) Brightness() byte {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.brightness
}

// MusicMode reports whether the fast unacknowledged path is active.
func (l *Light) MusicMode() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.musicMode
}

// SetMusicMode toggles music mode. When on, the device applies color and
// brightness changes faster but sends no acknowledgement reports. Local
// only; the flag travels with the next color command.
func (l *Light) SetMusicMode(on bool) {
	l.stateMu.Lock()
	l.musicMode = on
	l.stateMu.Unlock()
}

// SetState switches the light on or off.
func (l *Light) SetState(on bool) error {
	l.stateMu.Lock()
	l.on = on
	l.stateMu.Unlock()
	b := byte(0)
	if on {
		b = 1
	}
	return l.SendPacket(protocol.CmdLightOnOff, []byte{b, 0, 0})
}

// SetBrightness sets the brightness percentage, clamped to 0..100.
func (l *Light) SetBrightness(brightness int) error {
	bri := clampBrightness(brightness)
	l.stateMu.Lock()
	l.brightness = bri
	l.stateMu.Unlock()
	return l.SendPacket(protocol.CmdLightAttributes, []byte{bri, 0, 0, 0, 0, 0, 0, 1})
}

// SetColor sets an RGB color at the current brightness.
func (l *Light) SetColor(r, g, b byte) error {
	l.stateMu.Lock()
	bri := l.brightness
	music := musicByte(l.musicMode)
	l.stateMu.Unlock()
	return l.SendPacket(protocol.CmdLightAttributes, []byte{bri, r, g, b, 0, 0, music, 0})
}

// SetTemperature sets a white point from a black-body temperature in kelvin
// (clamped to 2700..6500). A zero brightness is raised to 3 so the change
// stays visible.
func (l *Light) SetTemperature(kelvin int) error {
	l.stateMu.Lock()
	if l.brightness == 0 {
		l.brightness = 3
	}
	bri := l.brightness
	music := musicByte(l.musicMode)
	l.stateMu.Unlock()

	payload := Temperature(kelvin, int(bri)).Bytes()
	payload[6] = music
	return l.SendPacket(protocol.CmdLightAttributes, payload)
}

// AddScenario registers a scenario slot on the device.
func (l *Light) AddScenario(id byte) error {
	return l.SendPacket(protocol.CmdScenarioEdit, []byte{0x01, id})
}

// DeleteScenario removes a scenario from the device.
func (l *Light) DeleteScenario(id byte) error {
	return l.SendPacket(protocol.CmdScenarioEdit, []byte{0x00, id})
}

// LoadScenario starts playing a scenario at the given animation speed and
// the current brightness.
func (l *Light) LoadScenario(id, speed byte) error {
	l.stateMu.Lock()
	bri := l.brightness
	l.stateMu.Unlock()
	return l.SendPacket(protocol.CmdScenarioLoad, []byte{id, speed, bri})
}

// QueryScenario requests the step reports of a stored scenario.
func (l *Light) QueryScenario(id byte) error {
	return l.SendPacket(protocol.CmdScenarioQuery, []byte{0, 0, id, 0xFF})
}

// EditScenario uploads a scenario definition: a sentinel load selects the
// edit target, then one frame per step.
func (l *Light) EditScenario(id byte, s *Scenario) error {
	if err := l.LoadScenario(protocol.ScenarioDefault, DefaultSpeed); err != nil {
		return err
	}
	for i := 0; i < s.Size(); i++ {
		step := s.StepBytes(i)
		step[0] = id
		if err := l.SendPacket(protocol.CmdScenarioEdit, step); err != nil {
			return err
		}
	}
	return nil
}

// QueryStatus requests a status report.
func (l *Light) QueryStatus() error {
	return l.SendPacket(protocol.CmdStatusQuery, []byte{0x10})
}

// QueryAlarms requests the alarm reports.
func (l *Light) QueryAlarms() error {
	return l.SendPacket(protocol.CmdAlarmQuery, []byte{0x10})
}

// SetAlarm creates or replaces an alarm record on the device.
func (l *Light) SetAlarm(a Alarm) error {
	return l.SendPacket(protocol.CmdAlarmEdit, a.editPayload())
}

// SetAlarmEnabled enables or disables an existing alarm.
func (l *Light) SetAlarmEnabled(id byte, enabled bool) error {
	op := byte(0x04)
	if enabled {
		op = 0x03
	}
	return l.SendPacket(protocol.CmdAlarmEdit, []byte{op, id})
}

// DeleteAlarm removes an alarm record from the device.
func (l *Light) DeleteAlarm(id byte) error {
	return l.SendPacket(protocol.CmdAlarmEdit, []byte{0x01, id})
}

// parseCommand claims the lighting reports; everything else falls through
// to the mesh base dispatcher.
func (l *Light) parseCommand(cmd byte, frame []byte, h Handlers) bool {
	switch cmd {
	case protocol.CmdOnlineStatusReport:
		r := protocol.DecodeOnlineStatusReport(frame)
		l.stateMu.Lock()
		l.brightness = r.Brightness
		l.on = r.On
		l.stateMu.Unlock()
		if h.OnlineStatus != nil {
			h.OnlineStatus(r)
		}
	case protocol.CmdStatusReport:
		r := protocol.DecodeStatusReport(frame)
		l.stateMu.Lock()
		l.brightness = r.Brightness
		l.stateMu.Unlock()
		if h.Status != nil {
			h.Status(r)
		}
	case protocol.CmdAlarmReport:
		if h.Alarm != nil {
			h.Alarm(protocol.DecodeAlarmReport(frame))
		}
	case protocol.CmdScenarioReport:
		if h.Scenario != nil {
			h.Scenario(protocol.DecodeScenarioReport(frame))
		}
	default:
		return false
	}
	return true
}

func musicByte(on bool) byte {
	if on {
		return 1
	}
	return 0
}

package telink

import "github.com/vpaeder/telinkgo/telink/protocol"

// Handlers is the set of callbacks a host registers to receive decoded
// reports from the mesh. Nil entries are skipped. Callbacks run on the
// transport's notification goroutine, one at a time; they must not block.
type Handlers struct {
	Time         func(protocol.TimeReport)
	Address      func(protocol.AddressReport)
	DeviceInfo   func(protocol.DeviceInfoReport)
	Groups       func(protocol.GroupReport)
	OnlineStatus func(protocol.OnlineStatusReport)
	Status       func(protocol.StatusReport)
	Alarm        func(protocol.AlarmReport)
	Scenario     func(protocol.ScenarioReport)
}

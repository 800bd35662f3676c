// Package mqtt bridges one connected Telink light to an MQTT broker:
// decoded reports are published as JSON and set-commands are accepted on a
// topic subtree, so the light plugs into home-automation setups without the
// host speaking BLE itself.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vpaeder/telinkgo/internal/config"
	"github.com/vpaeder/telinkgo/telink"
	"github.com/vpaeder/telinkgo/telink/protocol"
)

// LightController is the slice of the light API the bridge drives.
type LightController interface {
	SetState(on bool) error
	SetBrightness(brightness int) error
	SetColor(r, g, b byte) error
	SetTemperature(kelvin int) error
	LoadScenario(id, speed byte) error
	QueryStatus() error
	SetHandlers(h telink.Handlers)
}

// Bridge connects a Telink light session to MQTT.
type Bridge struct {
	client pahomqtt.Client
	light  LightController
	prefix string
	logger *slog.Logger
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(light LightController, cfg config.MQTTConfig, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		light:  light,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("telinkgo-bridge").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publish("bridge/state", "online", true)
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start registers the report handlers and asks the light for its current
// status so the first publish happens promptly.
func (b *Bridge) Start() {
	b.light.SetHandlers(telink.Handlers{
		OnlineStatus: b.publishOnlineStatus,
		Status:       b.publishStatus,
	})
	if err := b.light.QueryStatus(); err != nil {
		b.logger.Warn("initial status query failed", "err", err)
	}
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, detaches from the light and disconnects.
func (b *Bridge) Stop() {
	b.light.SetHandlers(telink.Handlers{})
	b.publish("bridge/state", "offline", true)
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) publishOnlineStatus(r protocol.OnlineStatusReport) {
	payload, err := json.Marshal(map[string]any{
		"mesh_id":    r.MeshID,
		"on":         r.On,
		"brightness": r.Brightness,
	})
	if err != nil {
		return
	}
	b.publish("state", string(payload), true)
}

func (b *Bridge) publishStatus(r protocol.StatusReport) {
	payload, err := json.Marshal(map[string]any{
		"brightness": r.Brightness,
		"r":          r.R,
		"g":          r.G,
		"b":          r.B,
		"w":          r.W,
	})
	if err != nil {
		return
	}
	b.publish("status", string(payload), true)
}

func (b *Bridge) publish(topic, payload string, retain bool) {
	if b.client == nil {
		return
	}
	b.client.Publish(b.prefix+"/"+topic, 0, retain, payload)
}

func (b *Bridge) subscribeCommands() {
	topic := b.prefix + "/set/#"
	token := b.client.Subscribe(topic, 0, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		suffix := strings.TrimPrefix(msg.Topic(), b.prefix+"/set/")
		if err := b.handleSet(suffix, string(msg.Payload())); err != nil {
			b.logger.Warn("set command failed", "topic", msg.Topic(), "err", err)
		}
	})
	if !token.WaitTimeout(5 * time.Second) {
		b.logger.Warn("subscribe timeout", "topic", topic)
	}
}

// handleSet dispatches one set-command.
func (b *Bridge) handleSet(command, payload string) error {
	switch command {
	case "state":
		on, err := parseState(payload)
		if err != nil {
			return err
		}
		return b.light.SetState(on)
	case "brightness":
		v, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil {
			return fmt.Errorf("brightness %q: %w", payload, err)
		}
		return b.light.SetBrightness(v)
	case "color":
		r, g, bl, err := parseColor(payload)
		if err != nil {
			return err
		}
		return b.light.SetColor(r, g, bl)
	case "temperature":
		v, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil {
			return fmt.Errorf("temperature %q: %w", payload, err)
		}
		return b.light.SetTemperature(v)
	case "scenario":
		id, speed, err := parseScenario(payload)
		if err != nil {
			return err
		}
		return b.light.LoadScenario(id, speed)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseState(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("state %q: want on or off", payload)
}

// parseColor accepts "R,G,B" with decimal components.
func parseColor(payload string) (byte, byte, byte, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("color %q: want R,G,B", payload)
	}
	var rgb [3]byte
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("color %q: %w", payload, err)
		}
		rgb[i] = byte(v)
	}
	return rgb[0], rgb[1], rgb[2], nil
}

// parseScenario accepts "id" or "id,speed".
func parseScenario(payload string) (byte, byte, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 1 && len(parts) != 2 {
		return 0, 0, fmt.Errorf("scenario %q: want id or id,speed", payload)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("scenario %q: %w", payload, err)
	}
	speed := uint64(telink.DefaultSpeed)
	if len(parts) == 2 {
		speed, err = strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
		if err != nil {
			return 0, 0, fmt.Errorf("scenario %q: %w", payload, err)
		}
	}
	return byte(id), byte(speed), nil
}

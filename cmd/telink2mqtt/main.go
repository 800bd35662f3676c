// Command telink2mqtt bridges one Telink mesh light to an MQTT broker.
// Reports are published under the configured topic prefix and set-commands
// are accepted on <prefix>/set/#.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vpaeder/telinkgo/ble"
	"github.com/vpaeder/telinkgo/internal/config"
	"github.com/vpaeder/telinkgo/internal/mqtt"
	"github.com/vpaeder/telinkgo/telink"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/telinkgo/config.yaml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	light, err := telink.NewLight(ble.NewNativeAdapter(), cfg.Device.MAC, cfg.Device.Name, cfg.Device.Password)
	if err != nil {
		log.Fatalf("light: %v", err)
	}
	if cfg.Device.Vendor != 0 {
		light.SetVendor(cfg.Device.Vendor)
	}
	if err := light.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer light.Disconnect()

	bridge, err := mqtt.NewBridge(light, cfg.MQTT, slog.Default())
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	bridge.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	bridge.Stop()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

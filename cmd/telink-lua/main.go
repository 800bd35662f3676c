// Command telink-lua runs a Lua script against a Telink mesh light:
//
//	telink-lua <MAC> <name> <password> <script.lua>
//
// The script sees a `light` table with on/off/brightness/color/temperature/
// scenario/status/sleep/log functions.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/vpaeder/telinkgo/ble"
	"github.com/vpaeder/telinkgo/internal/script"
	"github.com/vpaeder/telinkgo/telink"
)

func main() {
	if len(os.Args) != 5 {
		fmt.Fprintf(os.Stderr, "usage: %s <MAC> <name> <password> <script.lua>\n", os.Args[0])
		os.Exit(2)
	}

	light, err := telink.NewLight(ble.NewNativeAdapter(), os.Args[1], os.Args[2], os.Args[3])
	if err != nil {
		log.Fatalf("light: %v", err)
	}
	if err := light.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer light.Disconnect()

	engine := script.New(light, slog.Default())
	if err := engine.Run(os.Args[4]); err != nil {
		log.Fatalf("script: %v", err)
	}
}

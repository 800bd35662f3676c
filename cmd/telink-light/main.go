// Command telink-light is a small driver for one Telink mesh light:
//
//	telink-light [flags] <MAC> <name> <password>
//
// Without flags it runs a demo sequence: sync the clock, switch the light
// on, set a white point and full brightness, then cycle random colors in
// music mode until interrupted.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vpaeder/telinkgo/ble"
	"github.com/vpaeder/telinkgo/telink"
)

func main() {
	state := flag.String("state", "", "switch the light on or off")
	brightness := flag.Int("brightness", -1, "set brightness 0..100")
	color := flag.String("color", "", "set an RGB color as R,G,B")
	temperature := flag.Int("temperature", 0, "set a white point in kelvin (2700..6500)")
	scenario := flag.Int("scenario", -1, "load the scenario with this id")
	flag.Parse()

	if flag.NArg() != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <MAC> <name> <password>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	light, err := telink.NewLight(ble.NewNativeAdapter(), flag.Arg(0), flag.Arg(1), flag.Arg(2))
	if err != nil {
		log.Fatalf("light: %v", err)
	}
	if err := light.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer light.Disconnect()

	if *state == "" && *brightness < 0 && *color == "" && *temperature == 0 && *scenario < 0 {
		runDemo(light)
		return
	}

	switch *state {
	case "":
	case "on":
		must(light.SetState(true))
	case "off":
		must(light.SetState(false))
	default:
		log.Fatalf("state must be on or off, got %q", *state)
	}
	if *brightness >= 0 {
		must(light.SetBrightness(*brightness))
	}
	if *temperature != 0 {
		must(light.SetTemperature(*temperature))
	}
	if *color != "" {
		r, g, b, err := parseRGB(*color)
		if err != nil {
			log.Fatalf("color: %v", err)
		}
		must(light.SetColor(r, g, b))
	}
	if *scenario >= 0 {
		must(light.LoadScenario(byte(*scenario), telink.DefaultSpeed))
	}
}

// runDemo mirrors the classic protocol smoke test: clock sync, power on,
// white point, full brightness, then a random color chase.
func runDemo(light *telink.Light) {
	must(light.SetTime(time.Now()))
	must(light.QueryTime())
	must(light.SetState(true))
	must(light.SetTemperature(4600))
	must(light.SetBrightness(100))
	light.SetMusicMode(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("cycling random colors, Ctrl+C to quit")
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			return
		case <-ticker.C:
			must(light.SetColor(byte(rand.Intn(255)), byte(rand.Intn(255)), byte(rand.Intn(255))))
		}
	}
}

func parseRGB(s string) (byte, byte, byte, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("want R,G,B, got %q", s)
	}
	var rgb [3]byte
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return 0, 0, 0, err
		}
		rgb[i] = byte(v)
	}
	return rgb[0], rgb[1], rgb[2], nil
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

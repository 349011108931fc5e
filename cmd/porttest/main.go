// Command porttest exercises MIDI endpoints without the bridge: list and
// detect ports, print incoming traffic, watch for hot-plug and send a test
// controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mvave-bridge/config"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
	"mvave-bridge/widgets"
)

const listTimeout = 3 * time.Second

func main() {
	serialPort := flag.Bool("serial", false, "use serial (DIN-MIDI) ports instead of rtmidi")
	baud := flag.Int("baud", midi.DINBaud, "serial baud rate")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(config.LoggingConfig{Level: level, Output: "stderr"}, "porttest")
	defer logger.Close()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return
	}

	gw, closeGW, err := openGateway(*serialPort, *baud, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeGW()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "list":
		err = listPorts(gw)
	case "detect":
		err = detect(gw, args[1:])
	case "monitor":
		err = monitor(ctx, gw, args[1:])
	case "poll":
		poll(ctx, gw, logger)
	case "send":
		err = send(gw, args[1:])
	default:
		usage()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI port test")
	fmt.Println("")
	fmt.Println(widgets.RenderKeyHelp([]widgets.KeySection{
		{Title: "Commands:", Keys: []widgets.KeyBinding{
			{Key: "list", Desc: "List all MIDI ports"},
			{Key: "detect", Desc: "Find the foot controller (optional search keys)"},
			{Key: "monitor", Desc: "Print events from an input (default: detected)"},
			{Key: "poll", Desc: "Watch for device changes"},
			{Key: "send", Desc: "send <output> <cc> <value>"},
		}},
		{Title: "Flags:", Keys: []widgets.KeyBinding{
			{Key: "-serial", Desc: "Use serial ports at -baud"},
			{Key: "-v", Desc: "Debug logging"},
		}},
	}))
}

func openGateway(serial bool, baud int, logger *logging.Logger) (midi.Gateway, func(), error) {
	if serial {
		return midi.NewSerialGateway(baud, logger), func() {}, nil
	}
	gw, err := midi.NewPortGateway("", logger)
	if err != nil {
		return nil, nil, err
	}
	return gw, func() { _ = gw.Close() }, nil
}

// listPorts enumerates behind a timeout; some MIDI services hang.
func listPorts(gw midi.Gateway) error {
	type result struct {
		ins, outs []string
		err       error
	}
	ch := make(chan result, 1)
	go func() {
		ins, err := gw.Inputs()
		if err != nil {
			ch <- result{err: err}
			return
		}
		outs, err := gw.Outputs()
		ch <- result{ins: ins, outs: outs, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		fmt.Println("=== MIDI Input Ports ===")
		for i, p := range r.ins {
			fmt.Printf("  %d: %s%s\n", i, p, systemMark(p))
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s%s\n", i, p, systemMark(p))
		}
		return nil
	case <-time.After(listTimeout):
		return fmt.Errorf("port enumeration timed out after %v", listTimeout)
	}
}

func systemMark(name string) string {
	if midi.IsSystemPort(name) {
		return "  (system)"
	}
	return ""
}

func searchKeys(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return midi.DefaultSearchKeys
}

func detect(gw midi.Gateway, args []string) error {
	keys := searchKeys(args)
	fmt.Printf("Looking for %s...\n", strings.Join(keys, ", "))

	ins, err := gw.Inputs()
	if err != nil {
		return err
	}
	name, ok := midi.PickPort(ins, keys)
	if !ok {
		fmt.Println("\nController not found")
		return nil
	}
	fmt.Printf("Found input: %s\n", name)
	return nil
}

func monitor(ctx context.Context, gw midi.Gateway, args []string) error {
	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		ins, err := gw.Inputs()
		if err != nil {
			return err
		}
		picked, ok := midi.PickPort(ins, midi.DefaultSearchKeys)
		if !ok {
			return fmt.Errorf("no controller found; pass an input name")
		}
		name = picked
	}

	r, err := gw.OpenInput(name)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()

	fmt.Printf("Monitoring %s. Ctrl+C to exit.\n", name)
	for {
		e, ok := r.Next()
		if !ok {
			return r.Err()
		}
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), e)
	}
}

func poll(ctx context.Context, gw midi.Gateway, logger *logging.Logger) {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect the controller to test. Ctrl+C to exit.")

	dm := midi.NewDeviceManager(gw, 2*time.Second, logger)
	go dm.Run(ctx)

	for ev := range dm.Events() {
		if ev.Type != midi.PortsChanged {
			continue
		}
		fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
		fmt.Printf("  Inputs: %v\n", ev.Inputs)
		fmt.Printf("  Outputs: %v\n", ev.Outputs)
		if name, ok := midi.PickPort(ev.Inputs, midi.DefaultSearchKeys); ok {
			fmt.Printf("  -> controller detected: %s\n", name)
		}
	}
}

func send(gw midi.Gateway, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: send <output> <cc> <value>")
	}
	cc, err := midi.ParseCC(args[1])
	if err != nil {
		return err
	}
	value, err := strconv.Atoi(args[2])
	if err != nil || value < 0 || value > 127 {
		return fmt.Errorf("value %q outside 0-127", args[2])
	}

	w, err := gw.OpenOutput(args[0])
	if err != nil {
		return err
	}
	defer w.Close()

	ev := midi.ControlChange{Control: uint8(cc), Value: uint8(value)}
	if err := w.Send(ev); err != nil {
		return err
	}
	fmt.Printf("Sent %s to %s\n", ev, args[0])
	return nil
}

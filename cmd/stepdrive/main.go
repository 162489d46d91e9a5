package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"stepdrive/core"
	"stepdrive/host/serial"
	"stepdrive/host/telemetry"
	"stepdrive/standalone"
	"stepdrive/standalone/config"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	configFile = flag.String("config", config.FileName, "configuration file")
	verbose    = flag.Bool("verbose", false, "log scheduler events and dump the timing ring on exit")
)

func root() {
	str := `stepdrive drives stepper motors from GPIO lines, swinging every axis back
and forth between -amplitude and +amplitude with acceleration-limited moves.

Usage:
	stepdrive [-config file] [-verbose] <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `stepdrive is configured with a .yml file (stepdrive.yml unless -config is
given).  For a primer on YAML, see https://yaml.org/start.html

"mkconf" writes the current configuration, defaults included, to the file.
"conf" prints it.

driver selects the outputs:
	sim     in-memory, nothing is driven
	rpi     Raspberry Pi GPIO (BCM numbers), needs /dev/gpiomem
	periph  any GPIO periph.io finds on the host (gpiochip, sysfs)

Each entry under axes has a unique name, step_pin, dir_pin and optionally
enable_pin with has_enable: true.  Enable lines may be shared; step and
direction lines may not.  max_speed is in steps/s, max_acceleration in
steps/s².  pulse_high_us, pulse_low_us and dir_setup_us override the
driver timing (defaults 2, 2 and 1 µs).

Setting telemetry.device streams one line per axis, telemetry.rate times a
second:
	axis=<name> pos=<position> target=<target> speed=<steps/s>

SIGINT or SIGTERM stop the motors with every step line low and the drivers
disabled.`
	fmt.Println(str)
}

func mkconf() error {
	c, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	f, err := os.Create(*configFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return config.Write(f, c)
}

func printconf() error {
	c, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	return config.Write(os.Stdout, c)
}

func pversion() {
	fmt.Printf("stepdrive version %v\n", Version)
}

func run() error {
	c, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	if *verbose {
		core.SetDebugWriter(func(s string) { log.Println(s) })
		core.SetDebugEnabled(true)
		core.InitAsyncDebug()
		defer core.DumpTimingRing()
	}

	driver, err := openDriver(c.Driver)
	if err != nil {
		return err
	}
	defer driver.Close()

	m := standalone.NewManager(c)
	if err := m.Initialize(nil, standalone.GPIOBackends(driver)); err != nil {
		return err
	}

	if c.Telemetry.Device != "" {
		cfg := serial.DefaultConfig(c.Telemetry.Device)
		cfg.Baud = c.Telemetry.Baud
		port, err := serial.OpenWithRetry(cfg, serial.Open, serial.RetryPolicy())
		if err != nil {
			return errors.Wrap(err, "telemetry")
		}
		r := telemetry.NewReporter(port, c.Telemetry.Rate, telemetry.DefaultBuffer)
		defer func() {
			if r.Dropped() > 0 {
				log.Printf("telemetry: %d snapshots dropped", r.Dropped())
			}
			r.Close()
		}()
		m.SetSink(r, c.Telemetry.Rate)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("driving %d axes through %s, amplitude %d steps", len(c.Axes), driver.Name(), c.Amplitude)
	if err := m.Run(ctx); err != nil {
		return err
	}
	for _, a := range m.Scheduler().Axes() {
		log.Printf("%s stopped at %d after %d steps (%d output faults)",
			a.Name(), a.Profile().Position(), a.Pulses(), a.Faults())
	}
	return nil
}

func main() {
	flag.Usage = root
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		root()
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "help":
		help()
	case "mkconf":
		err = mkconf()
	case "conf":
		err = printconf()
	case "run":
		err = run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
	if err != nil {
		log.Fatal(err)
	}
}

package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/config"
	"github.com/kubisat/flight.go/pkg/flight"
	fx "github.com/kubisat/flight.go/pkg/framework"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/hal/fsstore"
	"github.com/kubisat/flight.go/pkg/hal/serialport"
	"github.com/kubisat/flight.go/pkg/hal/sim"
	"github.com/kubisat/flight.go/pkg/mqtt"
	"github.com/kubisat/flight.go/pkg/telemetry/downlink"
	"github.com/kubisat/flight.go/pkg/transport/link"
)

// exitBootloader is the exit code asking the supervisor to start the
// firmware loader.
const exitBootloader = 3

var (
	flags = config.SetupFlags(flag.CommandLine)
	exit  = os.Exit
)

func rebootToBootloader() error {
	glog.Warning("rebooting into bootloader")
	glog.Flush()
	exit(exitBootloader)
	return nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := flags.Load()
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	runner := fx.NewRunner().HandleSignals()
	ctx := runner.Context

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	p := flight.Peripherals{
		RTC:        sim.NewRTC(),
		Power:      sim.NewPower(),
		Sensors:    sim.NewSensors(),
		GPSPower:   &sim.GPIO{},
		Bootloader: hal.BootloaderFunc(rebootToBootloader),
	}
	if cfg.Simulate {
		p.Storage = sim.NewStorage()
		p.Radio = &sim.Radio{}
	} else {
		p.Storage = fsstore.New(cfg.Storage.Dir)
	}

	if cfg.DebugUART.Device != "" {
		port, err := serialport.Open(cfg.DebugUART)
		if err != nil {
			glog.Exitf("debug uart: %v", err)
		}
		closers = append(closers, port)
		p.DebugUART = port
	}
	if cfg.GPSUART.Device != "" {
		port, err := serialport.Open(cfg.GPSUART)
		if err != nil {
			glog.Exitf("gps uart: %v", err)
		}
		closers = append(closers, port)
		p.GPSUART = port
	}
	if cfg.LoRa.LinkURL != "" {
		radio, err := link.Open(ctx, cfg.LoRa.LinkURL, cfg.NodeID, link.Satellite)
		if err != nil {
			glog.Exitf("lora link: %v", err)
		}
		closers = append(closers, radio)
		p.Radio = radio
	}

	sys, err := flight.New(cfg, p)
	if err != nil {
		glog.Exitf("flight: %v", err)
	}

	if cfg.Downlink.URL != "" {
		q, err := mqtt.Dial(cfg.Downlink.URL, cfg.NodeID+"-downlink")
		if err != nil {
			glog.Exitf("downlink: %v", err)
		}
		closers = append(closers, q)
		sys.Downlink = &downlink.MQTTPublisher{Sink: q, Node: cfg.NodeID}
	}

	glog.Infof("node %s build %d starting", cfg.NodeID, cfg.BuildNumber)
	if err := runner.Go(fx.NamedRun("flight", fx.RunFunc(sys.Run))).Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/adapter"
	"github.com/mklimuk/magnetometer/cmd/hmc5883l/console"
	"github.com/mklimuk/magnetometer/hmc5883l"
	"github.com/mklimuk/magnetometer/i2c"
	"github.com/mklimuk/magnetometer/mgctx"
)

const (
	driverDevfs   = "devfs"
	driverPeriph  = "periph"
	driverGobot   = "gobot"
	driverMCP2221 = "mcp2221"
	driverSim     = "sim"

	formatText = "text"
	formatYAML = "yaml"

	readyTimeout = time.Second
)

// simulatedField is what the sim driver measures.
var simulatedField = hmc5883l.AxisSample{X: 10, Y: 20, Z: -10}

type target struct {
	bus  int
	addr uint16
}

func parseTarget(c *cli.Context) (target, error) {
	if c.NArg() < 2 {
		console.Usage(c.App.Name)
		return target{}, console.Exit(1, "expected 2 arguments, got %d", c.NArg())
	}
	bus, err := strconv.Atoi(c.Args().Get(0))
	if err != nil || bus < 0 {
		return target{}, console.Exit(1, "invalid bus number %q", c.Args().Get(0))
	}
	raw := strings.TrimPrefix(strings.ToLower(c.Args().Get(1)), "0x")
	addr, err := strconv.ParseUint(raw, 16, 16)
	if err != nil || addr > 0x3FF {
		return target{}, console.Exit(1, "invalid device address %q", c.Args().Get(1))
	}
	return target{bus: bus, addr: uint16(addr)}, nil
}

func openBus(c *cli.Context, driver string, bus int) (magnetometer.Bus, error) {
	switch driver {
	case driverDevfs:
		return i2c.Open(bus)
	case driverPeriph:
		b, err := i2c.OpenGenericBus(bus)
		if err != nil {
			return nil, err
		}
		if khz := c.Int64("speed-khz"); khz > 0 {
			if err := b.SetSpeed(physic.Frequency(khz) * physic.KiloHertz); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
		return b, nil
	case driverGobot:
		return i2c.OpenGobotBus(bus)
	case driverMCP2221:
		return adapter.Open(bus)
	case driverSim:
		return hmc5883l.NewSimulator(func(ctx context.Context) (hmc5883l.AxisSample, error) {
			return simulatedField, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

// withDevice opens and binds the bus, runs fn and closes the bus on every path.
func withDevice(c *cli.Context, fn func(ctx context.Context, dev *hmc5883l.HMC5883L) error) error {
	t, err := parseTarget(c)
	if err != nil {
		return err
	}
	driver := c.String("driver")
	ctx := mgctx.SetDriver(mgctx.SetVerbose(c.Context, c.Bool("verbose")), driver)

	bus, err := openBus(c, driver, t.bus)
	if err != nil {
		return console.Exit(1, "i2c-dev open fail: %s", console.Red(err))
	}
	defer func() {
		err := bus.Close()
		if err != nil {
			console.Errorf("error closing bus: %s", console.Red(err))
		}
	}()
	err = bus.Bind(t.addr)
	if err != nil {
		return console.Exit(1, "access slave addr fail: %s", console.Red(err))
	}
	slog.DebugContext(ctx, "device bound", "driver", driver, "bus", t.bus, "addr", fmt.Sprintf("%#x", t.addr))
	dev := hmc5883l.New(bus, hmc5883l.WithAddress(t.addr), hmc5883l.WithSettleDelay(c.Duration("settle")))
	return fn(ctx, dev)
}

func readAction(c *cli.Context) error {
	return withDevice(c, func(ctx context.Context, dev *hmc5883l.HMC5883L) error {
		err := dev.Configure(ctx)
		if err != nil {
			return console.Exit(1, "configuration failed: %s", console.Red(err))
		}
		if c.Bool("wait-ready") {
			wctx, cancel := context.WithTimeout(ctx, readyTimeout)
			err = dev.WaitReady(wctx, time.Millisecond)
			cancel()
			if err != nil {
				return console.Exit(1, "waiting for data failed: %s", console.Red(err))
			}
		}
		sample, err := dev.ReadAxes(ctx)
		if err != nil {
			return console.Exit(1, "transaction fail: %s", console.Red(err))
		}
		return output(c, sample, func() {
			console.PInfof(console.PictoCompass, "x: %s y: %s z: %s",
				console.AxisX(sample.X), console.AxisY(sample.Y), console.AxisZ(sample.Z))
		})
	})
}

var idCmd = cli.Command{
	Name:      "id",
	Usage:     "read the identification registers",
	ArgsUsage: "<i2c-bus> <i2c-address>",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, dev *hmc5883l.HMC5883L) error {
			id, err := dev.ReadID(ctx)
			if err != nil {
				return console.Exit(1, "transaction fail: %s", console.Red(err))
			}
			res := struct {
				ID      string `yaml:"id"`
				Raw     string `yaml:"raw"`
				Genuine bool   `yaml:"genuine"`
			}{string(id[:]), fmt.Sprintf("% x", id), string(id[:]) == "H43"}
			return output(c, res, func() {
				mark := console.Green("ok")
				if !res.Genuine {
					mark = console.Yellow("unexpected")
				}
				console.PInfof(console.PictoMagnet, "id: %s [%s] %s", console.White(res.ID), res.Raw, mark)
			})
		})
	},
}

var statusCmd = cli.Command{
	Name:      "status",
	Usage:     "read the status register",
	ArgsUsage: "<i2c-bus> <i2c-address>",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, dev *hmc5883l.HMC5883L) error {
			st, err := dev.ReadStatus(ctx)
			if err != nil {
				return console.Exit(1, "transaction fail: %s", console.Red(err))
			}
			res := struct {
				Ready  bool `yaml:"ready"`
				Locked bool `yaml:"locked"`
			}{st.Ready(), st.Locked()}
			return output(c, res, func() {
				console.Printf("ready: %s locked: %s\n", console.White(res.Ready), console.White(res.Locked))
			})
		})
	},
}

func output(c *cli.Context, v interface{}, text func()) error {
	switch c.String("format") {
	case formatYAML:
		enc := yaml.NewEncoder(console.Writer())
		err := enc.Encode(v)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return enc.Close()
	case formatText:
		text()
		return nil
	default:
		return console.Exit(1, "unknown output format %q", c.String("format"))
	}
}

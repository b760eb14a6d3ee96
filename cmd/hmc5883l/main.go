package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/magnetometer/cmd/hmc5883l/console"
	"github.com/mklimuk/magnetometer/hmc5883l"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	console.SetOutput(stdout, stderr)
	app := cli.NewApp()
	app.Name = "hmc5883l"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "read the HMC5883L magnetometer over I2C"
	app.UsageText = "hmc5883l [global options] <i2c-bus> <i2c-address>"
	app.Writer = stdout
	app.ErrWriter = stderr
	// errors are reported by run, never by os.Exit inside the app
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Value:   driverDevfs,
			Usage:   "bus driver: devfs, periph, gobot, mcp2221 or sim",
		},
		&cli.DurationFlag{
			Name:  "settle",
			Value: hmc5883l.DefaultSettleDelay,
			Usage: "wait between entering continuous mode and the first read",
		},
		&cli.Int64Flag{
			Name:  "speed-khz",
			Usage: "bus clock in kHz, periph driver only (0 keeps the adapter default)",
		},
		&cli.BoolFlag{
			Name:  "wait-ready",
			Usage: "poll the status register for the data ready bit before reading",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   formatText,
			Usage:   "output format: text or yaml",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Action = readAction
	app.Commands = cli.Commands{
		&idCmd,
		&statusCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	err := app.Run(args)
	if err != nil {
		console.Error(err.Error())
	}
	return console.ExitCode(err)
}

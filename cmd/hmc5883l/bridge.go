package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/magnetometer/adapter"
	"github.com/mklimuk/magnetometer/cmd/hmc5883l/console"
	"github.com/mklimuk/magnetometer/mgctx"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "list attached MCP2221 bridges; the index is the bus number for --driver mcp2221",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(adapter.VendorID, adapter.ProductID)

		w := tabwriter.NewWriter(console.Writer(), 8, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "BUS\tPATH\tSERIAL\tVENDOR\tPRODUCT ID\tPRODUCT\n")
		for i, dev := range devices {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%#x\t%#x\t%s\n",
				i, dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Product)
		}
		_ = w.Flush()
		return nil
	},
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 bridge diagnostics",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:      "status",
	ArgsUsage: "[bridge-index]",
	Action: func(c *cli.Context) error {
		return bridgeAction(c, func(ctx context.Context, a *adapter.MCP2221) (*adapter.MCP2221Status, error) {
			return a.Status(ctx)
		})
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:      "release",
	Usage:     "cancel the current transfer and free the I2C engine",
	ArgsUsage: "[bridge-index]",
	Action: func(c *cli.Context) error {
		return bridgeAction(c, func(ctx context.Context, a *adapter.MCP2221) (*adapter.MCP2221Status, error) {
			return a.ReleaseBus(ctx)
		})
	},
}

func bridgeAction(c *cli.Context, fn func(ctx context.Context, a *adapter.MCP2221) (*adapter.MCP2221Status, error)) error {
	index := 0
	if c.NArg() > 0 {
		var err error
		index, err = strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "invalid bridge index %q", c.Args().Get(0))
		}
	}
	ctx := mgctx.SetVerbose(c.Context, c.Bool("verbose"))
	status, err := fn(ctx, adapter.NewMCP2221(index))
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(console.Writer())
	err = enc.Encode(status)
	if err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}

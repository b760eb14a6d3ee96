package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	binary      = "hmc5883l"
	mainPackage = "./cmd/hmc5883l"
	buildImage  = "gophertribe/gobuild:1.25-bookworm"
)

// boards maps a --board shortcut to the platform the magnetometer host runs on.
var boards = map[string]platform{
	"nanopi": {os: "linux", arch: "arm"},
	"rpi":    {os: "linux", arch: "arm64"},
}

type platform struct {
	os   string
	arch string
}

func (p platform) native() bool {
	return p.os == runtime.GOOS && p.arch == runtime.GOARCH
}

func (p platform) artifact() string {
	return fmt.Sprintf("dist/%s-%s-%s", binary, p.os, p.arch)
}

// cgo is needed by karalabe/hid, so the mcp2221 driver only exists in linux builds.
func (p platform) cgo() bool {
	return p.os == "linux"
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the hmc5883l cli",
		Long:  "Builds the hmc5883l cli natively, or inside a build container when the target platform differs from the host",
		RunE: func(cmd *cobra.Command, args []string) error {
			version := cmd.Flag("version").Value.String()
			target, err := targetPlatform(cmd)
			if err != nil {
				return err
			}
			cross := platform{os: cmd.Flag("cross-os").Value.String(), arch: cmd.Flag("cross-arch").Value.String()}
			if target.native() {
				// inside the build container the cross target is passed down explicitly
				if cross.os != "" && cross.arch != "" {
					target = cross
				}
				return goBuild(target, version)
			}

			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			image := cmd.Flag("image").Value.String()
			slog.Info("building in container", "image", image, "os", target.os, "arch", target.arch)
			workdir := fmt.Sprintf("./dev-%s-%s-%s", binary, target.os, target.arch)
			return build.Docker(cmd.Context(), workdir, []string{"build", "--version", version, "--cross-os", target.os, "--cross-arch", target.arch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   image,
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("board", "", "build for a known board (nanopi, rpi); overrides --os and --arch")
	cmd.Flags().String("image", buildImage, "container image used for cross builds")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")

	return cmd
}

func targetPlatform(cmd *cobra.Command) (platform, error) {
	board := cmd.Flag("board").Value.String()
	if board == "" {
		return platform{os: cmd.Flag("os").Value.String(), arch: cmd.Flag("arch").Value.String()}, nil
	}
	p, ok := boards[board]
	if !ok {
		return platform{}, fmt.Errorf("unknown board %q", board)
	}
	return p, nil
}

func goBuild(p platform, version string) error {
	slog.Info("building", "artifact", p.artifact())
	return build.GoBuild(p.artifact(), mainPackage, build.GoBuildOpts{
		Version:       version,
		InjectVersion: true,
		ConfigPackage: "main",
		EnableCgo:     p.cgo(),
		Arch:          p.arch,
		OS:            p.os,
	})
}

// Command bearasm assembles a bear source file into a little-endian binary
// image, emitting a JSON debug sidecar alongside it by default.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"bear/asm"
)

func main() {
	app := cli.NewApp()
	app.Name = "bearasm"
	app.Usage = "assemble a bear source file into a binary image"
	app.ArgsUsage = "<in> <out>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "no-debug",
			Usage: "skip writing the <out-stem>.debug JSON sidecar",
		},
	}
	app.Action = run

	defer recoverToExitCode()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func recoverToExitCode() {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "bearasm: fatal: %v\n", r)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return cli.NewExitError("usage: bearasm <in> <out>", 1)
	}
	in, out := args.Get(0), args.Get(1)

	src, err := os.ReadFile(in)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("reading %s: %v", in, err), 1)
	}

	image, dbg, err := asm.Build(string(src), nil)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("assembling %s: %v", in, err), 1)
	}

	if err := os.WriteFile(out, image, 0o644); err != nil {
		return cli.NewExitError(fmt.Sprintf("writing %s: %v", out, err), 1)
	}

	if !c.Bool("no-debug") {
		if err := writeDebugSidecar(out, dbg); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}
	return nil
}

func writeDebugSidecar(outPath string, dbg asm.Debug) error {
	stem := strings.TrimSuffix(outPath, filepath.Ext(outPath))
	path := stem + ".debug"
	encoded, err := json.MarshalIndent(dbg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding debug sidecar: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

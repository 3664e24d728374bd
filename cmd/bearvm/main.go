// Command bearvm loads a bear binary image, wires its devices, and runs it
// to completion.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli"

	"bear/config"
	"bear/device"
	"bear/opcode"
	"bear/vm"
)

func main() {
	app := cli.NewApp()
	app.Name = "bearvm"
	app.Usage = "run a bear binary image"
	app.ArgsUsage = "<binary>"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "stdin", Usage: "file to read the stdin device from (default: the process's own stdin)"},
		cli.StringFlag{Name: "stdout", Usage: "file to write the stdout device to (default: the process's own stdout)"},
		cli.StringFlag{Name: "config", Usage: "TOML device-wiring file (see config.Config)"},
		cli.BoolFlag{Name: "debug", Usage: "trace every dispatched opcode to stderr"},
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
		fmt.Fprintf(os.Stderr, "bearvm: fatal: %v\n", r)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("usage: bearvm <binary>", 1)
	}
	binPath := args.Get(0)

	bin, err := os.ReadFile(binPath)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("reading %s: %v", binPath, err), 1)
	}

	cfg, err := loadWiring(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	machine := vm.NewFromBytes(bin)
	closers, err := attachDevices(machine, cfg, c.String("stdin"), c.String("stdout"))
	defer closeAll(closers)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if c.Bool("debug") {
		machine.Trace = func(ip uint32, op opcode.OpCode) {
			fmt.Fprintf(os.Stderr, "%04d: %s\n", ip, op)
		}
	}

	state, err := machine.Start()
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("starting %s: %v", binPath, err), 1)
	}
	if err := state.Run(); err != nil {
		return cli.NewExitError(fmt.Sprintf("running %s: %v", binPath, err), 1)
	}
	return nil
}

// loadWiring resolves the device-wiring document: the --config file if
// given, otherwise the built-in stdin/stdout default.
func loadWiring(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.Default(), nil
}

// attachDevices registers every configured device on machine, in ascending
// id order (device id is positional: the Nth WithDevice call becomes device
// N, matching the VM's `io` dispatch). --stdin/--stdout flags override the
// path of whichever configured device has that kind, taking precedence over
// the config file as required.
func attachDevices(machine *vm.VM, cfg config.Config, stdinOverride, stdoutOverride string) ([]func() error, error) {
	devices := append([]config.Device(nil), cfg.Device...)
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	var closers []func() error
	for _, d := range devices {
		path := d.Path
		switch d.Kind {
		case "stdin":
			if stdinOverride != "" {
				path = stdinOverride
			}
			r, closer, err := openOrStdin(path)
			if err != nil {
				return closers, err
			}
			closers = appendCloser(closers, closer)
			machine.WithDevice(device.NewStdinDevice(r))
		case "stdout":
			if stdoutOverride != "" {
				path = stdoutOverride
			}
			w, closer, err := createOrStdout(path)
			if err != nil {
				return closers, err
			}
			closers = appendCloser(closers, closer)
			machine.WithDevice(device.NewStdoutDevice(w))
		default:
			return closers, fmt.Errorf("unknown device kind %q", d.Kind)
		}
	}
	return closers, nil
}

func openOrStdin(path string) (*os.File, func() error, error) {
	if path == "" {
		return os.Stdin, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, f.Close, nil
}

func createOrStdout(path string) (*os.File, func() error, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}

func appendCloser(closers []func() error, c func() error) []func() error {
	if c == nil {
		return closers
	}
	return append(closers, c)
}

func closeAll(closers []func() error) {
	for _, c := range closers {
		_ = c()
	}
}

package main

import (
	"flag"
	"fmt"
	"os"

	"pkt.systems/tabtidy/bootstrap"
)

func main() {
	var output string
	var overwrite bool
	var enableSSH bool
	var debugPort int
	flag.StringVar(&output, "output", "dist/bootstrap", "output directory")
	flag.StringVar(&output, "o", "dist/bootstrap", "output directory")
	flag.BoolVar(&overwrite, "force", false, "overwrite existing files")
	flag.BoolVar(&enableSSH, "ssh", false, "enable the ssh command channel in the generated config")
	flag.IntVar(&debugPort, "debug-port", bootstrap.DefaultDebugPort, "DevTools port for the generated launcher")
	flag.Parse()

	paths, err := bootstrap.WriteBootstrap(output, overwrite, bootstrap.Options{
		DebugPort: debugPort,
		EnableSSH: enableSSH,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, paths.ConfigPath)
	fmt.Fprintln(os.Stdout, paths.ExtensionDir)
	fmt.Fprintln(os.Stdout, paths.LaunchScript)
	fmt.Fprintln(os.Stdout, paths.AuthorizedKeysPath)
	fmt.Fprintln(os.Stdout, paths.HostKeyPath)
}

package cmd

import (
	"flag"
	"fmt"
	"os"
)

// Args holds the CLI options parsed from arguments.
type Args struct {
	ConfigPath string // Optional YAML config file
	APIAddr    string // HTTP control API listen address (overrides config)
	WithBot    bool   // Start the Discord front-end
	Inputs     []string // Paths or URLs to queue at startup
}

// ParseArgs parses command line arguments.
func ParseArgs() (*Args, error) {
	args := &Args{}

	flag.StringVar(&args.ConfigPath, "c", "", "Path to YAML config file")
	flag.StringVar(&args.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&args.APIAddr, "api", "", "HTTP API listen address (e.g. :8180)")
	flag.BoolVar(&args.WithBot, "bot", false, "Start the Discord front-end (requires DISCORD_TOKEN)")

	flag.Usage = printUsage
	flag.Parse()

	args.Inputs = flag.Args()
	return args, nil
}

// printUsage prints the usage information.
func printUsage() {
	fmt.Println("\nUsage:")
	fmt.Println("  groovebox [flags] [path-or-url ...]")
	fmt.Println("\nFlags:")
	fmt.Println("  -c, -config    Path to YAML config file")
	fmt.Println("  -api           HTTP API listen address (e.g. :8180)")
	fmt.Println("  -bot           Start the Discord front-end (requires DISCORD_TOKEN)")
	fmt.Println("\nExamples:")
	fmt.Println("  groovebox ./music")
	fmt.Println("  groovebox https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	fmt.Println("  groovebox -api :8180 -bot")
	fmt.Println()
}

// PrintUsageAndExit prints usage and exits with code 1.
func PrintUsageAndExit() {
	printUsage()
	os.Exit(1)
}

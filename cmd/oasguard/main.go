package main

import (
	"fmt"
	"os"

	"github.com/erraggy/oasguard"
	"github.com/erraggy/oasguard/cmd/oasguard/commands"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version", "-v", "--version":
		fmt.Printf("oasguard %s\n", oasguard.Version())
		if len(os.Args) > 2 && os.Args[2] == "-l" {
			fmt.Println(oasguard.BuildInfo())
		}
	case "help", "-h", "--help":
		printUsage()
	case "check":
		if err := commands.HandleCheck(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "proxy":
		if err := commands.HandleProxy(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`oasguard - OpenAPI request and response validation

Usage:
  oasguard <command> [options]

Commands:
  check       Load a document and compile every schema it declares
  proxy       Run a validating reverse proxy in front of a service
  version     Show version information (-l for build details)
  help        Show this help message

Examples:
  oasguard check openapi.yaml
  oasguard proxy -spec openapi.yaml -upstream http://localhost:9000 -listen :8080

Run 'oasguard <command> --help' for more information on a command.`)
}

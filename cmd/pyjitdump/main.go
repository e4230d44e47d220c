// pyjitdump assembles a small bytecode listing and shows what pyjit's
// compile pipeline does with it: what analysis infers, what the
// dependency graph decides about boxing, and what IL the driver emits.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corejit/pyjit/dump"
)

const version = "0.1.0"

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `pyjitdump v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    pyjitdump steps a hand-written bytecode listing through pyjit's
    analysis -> depgraph -> driver pipeline and shows what each stage
    decided. Without any flags, it starts an interactive stepper.

OPTIONS:
    -f, --file <path>       Step a listing read from a file
    -e, --eval <listing>    Step a listing given directly on the command line
    -d, --debug             Accepted; does not change the output
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Start the interactive stepper
    %s

    # Step a listing file
    %s -f listing.pybc

    # Step a listing given inline (use \n for line breaks)
    %s -e "LOAD_FAST 0\nLOAD_CONST 0\nBINARY_ADD 0\nRETURN_VALUE 0"

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	fileFlag := flag.String("file", "", "Step a listing read from a file")
	evalFlag := flag.String("eval", "", "Step a listing given directly on the command line")
	debugFlag := flag.Bool("debug", false, "Accepted; does not change the output")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(fileFlag, "f", "", "Step a listing read from a file")
	flag.StringVar(evalFlag, "e", "", "Step a listing given directly on the command line")
	flag.BoolVar(debugFlag, "d", false, "Accepted; does not change the output")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("pyjitdump v%s\n", version)
		return
	}

	if *fileFlag != "" {
		stepFile(*fileFlag)
		return
	}

	if *evalFlag != "" {
		stepListing(*evalFlag)
		return
	}

	fmt.Println("pyjitdump: interactive bytecode stepper")
	fmt.Println("Type one instruction per line; a blank line steps the listing. (Ctrl+C or Esc to exit)")

	dump.Start(dump.Options{Debug: *debugFlag})
}

func stepFile(filename string) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}

	//nolint:gosec // We're not reading user input here
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	stepListing(string(content))
}

func stepListing(listing string) {
	// -e takes the listing on one shell argument, so accept literal "\n"
	// as a line separator alongside real newlines from -f/file input.
	listing = strings.ReplaceAll(listing, `\n`, "\n")
	panes, err := dump.Step(listing)
	if panes.Analysis != "" {
		fmt.Println("Analysis")
		fmt.Println(panes.Analysis)
	}
	if panes.Graph != "" {
		fmt.Println("Graph")
		fmt.Println(panes.Graph)
	}
	if err != nil {
		fmt.Printf("compile error: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("IL")
	fmt.Println(panes.IL)
}

// Consttab CLI - generates Go tag types and lookup tables from .tags files
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/consttab/manifest"
	"github.com/chazu/consttab/server"
)

const toolVersion = "0.1.0"

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	output := flag.String("o", "", "Output file, - for stdout (single input only)")
	fingerprint := flag.Bool("fingerprint", false, "Stamp a content fingerprint in generated headers")
	check := flag.Bool("check", false, "Type-check generated code in memory before writing")
	verify := flag.Bool("verify", false, "Verify stamped fingerprints instead of generating")
	docOut := flag.String("doc", "", "Write Markdown documentation to the given file, - for stdout")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdin/stdout")
	showVersion := flag.Bool("version", false, "Print the tool version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: consttab [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Generates Go tag types and lookup tables from .tags files. With no files,\n")
		fmt.Fprintf(os.Stderr, "sources come from consttab.toml, or from the current directory without one.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  consttab planets.tags          # write planets_tags.go\n")
		fmt.Fprintf(os.Stderr, "  consttab                       # generate every manifest source\n")
		fmt.Fprintf(os.Stderr, "  consttab -fingerprint -check   # stamp and type-check everything\n")
		fmt.Fprintf(os.Stderr, "  consttab -verify               # report stale generated files\n")
		fmt.Fprintf(os.Stderr, "  consttab -doc TABLES.md        # document every tagset\n")
		fmt.Fprintf(os.Stderr, "  consttab -lsp                  # serve editors over stdio\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("consttab " + toolVersion)
		return
	}

	if *lspMode {
		srv := server.New(*verbose)
		if err := srv.RunStdio(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	man, err := loadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *fingerprint {
		man.Generate.Fingerprint = true
	}
	if *check {
		man.Generate.Check = true
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths, err = man.Sources()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no .tags files found\n")
			os.Exit(1)
		}
	}
	if *output != "" && len(paths) != 1 {
		fmt.Fprintf(os.Stderr, "Error: -o requires exactly one input file\n")
		os.Exit(1)
	}

	switch {
	case *verify:
		err = runVerify(paths, man, *verbose)
	case *docOut != "":
		err = runDoc(paths, *docOut)
	default:
		err = runGenerate(paths, man, *output, *verbose)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest finds the nearest consttab.toml, falling back to defaults
// when the project has none.
func loadManifest() (*manifest.Manifest, error) {
	man, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if man == nil {
		return manifest.Default(".")
	}
	return man, nil
}

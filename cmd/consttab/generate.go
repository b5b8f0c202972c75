package main

import (
	"fmt"
	"os"

	"github.com/chazu/consttab/compiler"
	"github.com/chazu/consttab/compiler/hash"
	"github.com/chazu/consttab/manifest"
)

// runGenerate compiles every source file and writes its generated Go file.
// An output of "-" sends the single file to stdout; any other non-empty
// output overrides the manifest naming.
func runGenerate(paths []string, man *manifest.Manifest, output string, verbose bool) error {
	for _, path := range paths {
		outPath := man.OutputFor(path)
		switch output {
		case "":
		case "-":
			outPath = ""
		default:
			outPath = output
		}
		if err := generateFile(path, outPath, man, verbose); err != nil {
			return err
		}
	}
	return nil
}

// generateFile runs the pipeline for one source file. An empty outPath
// writes to stdout.
func generateFile(path, outPath string, man *manifest.Manifest, verbose bool) error {
	file, err := loadSource(path)
	if err != nil {
		return err
	}

	opts := compiler.Options{Source: path, Output: outPath}
	if man.Generate.Fingerprint {
		fp, err := hash.Fingerprint(file)
		if err != nil {
			return fmt.Errorf("fingerprinting %s: %w", path, err)
		}
		opts.Fingerprint = fp
	}

	out, err := compiler.Generate(file, opts)
	if err != nil {
		return fmt.Errorf("generating %s: %w", path, err)
	}

	if man.Generate.Check {
		checkName := outPath
		if checkName == "" {
			checkName = "generated.go"
		}
		if errs := compiler.Check(out, checkName); len(errs) > 0 {
			fmt.Fprint(os.Stderr, compiler.FormatCheckErrors(checkName, errs))
			return fmt.Errorf("%s: generated code does not compile", path)
		}
	}

	if outPath == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", outPath, err)
	}
	if verbose {
		fmt.Printf("Wrote %s\n", outPath)
	}
	return nil
}

// loadSource parses and validates one .tags file. Warnings go to stderr
// without failing the load; any error diagnostic fails it.
func loadSource(path string) (*compiler.File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	file, diags := compiler.Parse(string(src))
	v := compiler.NewValidator()
	v.ValidateFile(file)
	diags = append(diags, v.Errors()...)

	if warns := v.Warnings(); len(warns) > 0 {
		fmt.Fprint(os.Stderr, compiler.FormatDiagnostics(path, warns))
	}
	if len(diags) > 0 {
		fmt.Fprint(os.Stderr, compiler.FormatDiagnostics(path, diags))
		return nil, fmt.Errorf("%s: %d error(s)", path, len(diags))
	}
	return file, nil
}

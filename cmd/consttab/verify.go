package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/consttab/compiler/hash"
	"github.com/chazu/consttab/manifest"
)

// fingerprintPrefix is the header line stamped during generation.
const fingerprintPrefix = "// Fingerprint: "

// runVerify recomputes every source fingerprint and compares it with the
// one stamped in the generated file. A missing stamp or a missing file is
// a failure: either way, stamped generation has not run for the current
// source.
func runVerify(paths []string, man *manifest.Manifest, verbose bool) error {
	stale := 0
	for _, path := range paths {
		outPath := man.OutputFor(path)
		ok, reason, err := verifyFile(path, outPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: %s\n", outPath, reason)
			stale++
			continue
		}
		if verbose {
			fmt.Printf("%s: up to date\n", outPath)
		}
	}
	if stale > 0 {
		return fmt.Errorf("%d generated file(s) out of date", stale)
	}
	return nil
}

// verifyFile compares the fingerprint stamped in outPath against the
// fingerprint of path's current content.
func verifyFile(path, outPath string) (bool, string, error) {
	file, err := loadSource(path)
	if err != nil {
		return false, "", err
	}
	want, err := hash.Fingerprint(file)
	if err != nil {
		return false, "", fmt.Errorf("fingerprinting %s: %w", path, err)
	}

	stamped, err := readStampedFingerprint(outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "missing; run consttab to generate it", nil
		}
		return false, "", err
	}
	if stamped == "" {
		return false, "has no fingerprint stamp; regenerate with -fingerprint", nil
	}
	if stamped != want {
		return false, "stale; source changed since generation", nil
	}
	return true, "", nil
}

// readStampedFingerprint returns the fingerprint in the header comment
// block of a generated file, or "" when the header carries none.
func readStampedFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if strings.HasPrefix(line, fingerprintPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, fingerprintPrefix)), nil
		}
		if !strings.HasPrefix(line, "//") {
			// Past the header comment block
			break
		}
	}
	return "", s.Err()
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chazu/consttab/compiler"
)

// ---------------------------------------------------------------------------
// Markdown documentation for tagsets
// ---------------------------------------------------------------------------

// runDoc renders Markdown documentation for every tagset in the given
// sources. An output of "-" writes to stdout.
func runDoc(paths []string, output string) error {
	var sb strings.Builder
	sb.WriteString("# Tagset tables\n")
	for _, path := range paths {
		file, err := loadSource(path)
		if err != nil {
			return err
		}
		writeFileDoc(&sb, path, file)
	}

	if output == "-" {
		_, err := os.Stdout.WriteString(sb.String())
		return err
	}
	if err := os.WriteFile(output, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", output, err)
	}
	return nil
}

// writeFileDoc renders one source file: its package doc, then each tagset.
func writeFileDoc(sb *strings.Builder, path string, file *compiler.File) {
	fmt.Fprintf(sb, "\n## %s\n", path)
	if doc := commentText(file.Doc); doc != "" {
		fmt.Fprintf(sb, "\n%s\n", doc)
	}
	for _, ts := range file.TagSets {
		writeTagSetDoc(sb, ts)
	}
}

// writeTagSetDoc renders one tagset: header, summary, record and tag tables.
func writeTagSetDoc(sb *strings.Builder, ts *compiler.TagSet) {
	fmt.Fprintf(sb, "\n### tagset %s\n", ts.Name)
	if doc := commentText(ts.Doc); doc != "" {
		fmt.Fprintf(sb, "\n%s\n", doc)
	}

	sb.WriteString("\n")
	if ts.Width == "" {
		fmt.Fprintf(sb, "- Backing width: `%s` (default)\n", ts.EffectiveWidth())
	} else {
		fmt.Fprintf(sb, "- Backing width: `%s`\n", ts.EffectiveWidth())
	}
	if len(ts.Derives) > 0 {
		names := make([]string, len(ts.Derives))
		for i, d := range ts.Derives {
			names[i] = "`" + d.Name + "`"
		}
		fmt.Fprintf(sb, "- Capabilities: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(sb, "- Tags: %d\n", len(ts.Tags))

	if ts.Record != nil {
		fmt.Fprintf(sb, "\n#### record %s\n\n", ts.Record.Name)
		if doc := commentText(ts.Record.Doc); doc != "" {
			fmt.Fprintf(sb, "%s\n\n", doc)
		}
		if len(ts.Record.Fields) == 0 {
			sb.WriteString("No fields.\n")
		} else {
			sb.WriteString("| Field | Type | Description |\n")
			sb.WriteString("|-------|------|-------------|\n")
			for _, f := range ts.Record.Fields {
				fmt.Fprintf(sb, "| %s | `%s` | %s |\n",
					f.Name, escapeCell(f.Type), escapeCell(commentText(f.Doc)))
			}
		}
	}

	if len(ts.Tags) > 0 {
		sb.WriteString("\n#### tags\n\n")
		sb.WriteString("| Ordinal | Tag | Initializer |\n")
		sb.WriteString("|---------|-----|-------------|\n")
		for i, tag := range ts.Tags {
			fmt.Fprintf(sb, "| %d | %s | `%s` |\n", i, tag.Name, escapeCell(flatten(tag.Init)))
		}
	}
}

// commentText joins a doc comment block into prose, dropping the markers.
func commentText(doc []string) string {
	var lines []string
	for _, line := range doc {
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, " ")
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, " "))
}

// flatten collapses a multiline initializer onto a single line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// escapeCell keeps literal pipes from breaking the table.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

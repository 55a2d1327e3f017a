// Package main writes a single markdown file documenting every pppctl command.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/ppp/pppctl/cmd/pppctl/cmd"
	"github.com/ppp/pppctl/internal/constants"
)

func main() {
	var outFile string
	flag.StringVar(&outFile, "out", "./docs/CLI.md", "output file for generated markdown")
	flag.Parse()

	if outFile == "" {
		log.Fatal("error: output file is required")
	}

	if err := generateCLIDocs(outFile); err != nil {
		log.Fatalf("error: %s", err)
	}
}

func generateCLIDocs(outFile string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var buf bytes.Buffer
	root := cmd.RootCmd()
	root.DisableAutoGenTag = true

	fmt.Fprintf(&buf, "# %s CLI Documentation\n\n", constants.CLIName)
	fmt.Fprintln(&buf, "This document contains all available CLI commands, their descriptions, flags, and examples.")
	fmt.Fprintln(&buf)

	if err := generateDocs(root, &buf, 2); err != nil {
		return fmt.Errorf("generating documentation: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(outFile), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	absPath, err := filepath.Abs(outFile)
	if err != nil {
		absPath = outFile
	}
	log.Printf("generated CLI documentation in %s", absPath)
	return nil
}

func generateDocs(c *cobra.Command, w io.Writer, level int) error {
	if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
		return nil
	}

	fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), c.CommandPath())
	if c.Short != "" {
		fmt.Fprintf(w, "%s\n\n", c.Short)
	}
	if c.Long != "" && c.Long != c.Short {
		fmt.Fprintf(w, "%s\n\n", c.Long)
	}
	if c.Example != "" {
		fmt.Fprintf(w, "**Examples:**\n\n```bash\n%s\n```\n\n", c.Example)
	}

	var markdown bytes.Buffer
	if err := doc.GenMarkdown(c, &markdown); err != nil {
		return fmt.Errorf("generating markdown for %s: %w", c.CommandPath(), err)
	}
	if options := optionsSection(markdown.String()); options != "" {
		fmt.Fprintf(w, "%s\n\n", options)
	}

	subcommands := c.Commands()
	sort.Slice(subcommands, func(i, j int) bool {
		return subcommands[i].Name() < subcommands[j].Name()
	})
	for _, sub := range subcommands {
		if err := generateDocs(sub, w, level+1); err != nil {
			return err
		}
	}
	return nil
}

// optionsSection extracts the "### Options" block of cobra's markdown, or "".
func optionsSection(markdown string) string {
	start := strings.Index(markdown, "### Options")
	if start < 0 {
		return ""
	}
	section := markdown[start:]
	for _, marker := range []string{"\n\n### Options inherited", "\n\n### SEE ALSO", "\n\n## "} {
		if end := strings.Index(section, marker); end > 0 {
			section = section[:end]
		}
	}
	return strings.TrimRight(section, "\n")
}

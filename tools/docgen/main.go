// Package main writes the ebaylister CLI reference as markdown or man pages.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/fizic37/delcampe-ebay/cmd/ebaylister/cmd"
)

func main() {
	output := flag.String("output", "docs/cli", "output directory")
	format := flag.String("format", "markdown", "output format: markdown or man")
	flag.Parse()

	if err := generate(cmd.Root(), *output, *format); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("CLI %s docs generated in %s/\n", *format, *output)
}

// generate renders one file per command of root into dir.
func generate(root *cobra.Command, dir, format string) error {
	root.DisableAutoGenTag = true

	var render func() error
	switch format {
	case "markdown":
		render = func() error { return doc.GenMarkdownTree(root, dir) }
	case "man":
		header := &doc.GenManHeader{Title: "EBAYLISTER", Section: "1", Source: "ebaylister"}
		render = func() error { return doc.GenManTree(root, header, dir) }
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := render(); err != nil {
		return fmt.Errorf("generating %s docs: %w", format, err)
	}
	return nil
}

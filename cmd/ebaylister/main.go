// Package main is the entry point for ebaylister.
package main

import (
	"os"

	"github.com/fizic37/delcampe-ebay/cmd/ebaylister/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the mtreex command-line tool for mtree manifests.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// main.go: entry point of the termite command
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package main provides the termite command, which runs a plugin platform
// over the bundles found in the configured plugin directories.
package main

import (
	"errors"
	"fmt"
	"os"

	goerrors "github.com/agilira/go-errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError writes err to stderr, preferring its user message.
func printError(err error) {
	var coded *goerrors.Error
	if errors.As(err, &coded) && coded.UserMessage() != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n  %v\n", coded.UserMessage(), err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

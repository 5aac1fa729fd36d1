// version.go: version subcommand
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// BuildVersion is set at build time with
// -ldflags "-X main.BuildVersion=v1.2.3".
var BuildVersion = "n/a"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of termite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "termite %s\n", resolveVersion())
			return err
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
}

func resolveVersion() string {
	if BuildVersion != "n/a" {
		return BuildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return BuildVersion
}

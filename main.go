// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the scrapbook CLI.
package main

import (
	"scrapbook/cli/cmd"
)

func main() {
	cmd.Execute()
}

// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sodaru/somod/cmd/somod/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand(os.Stdout).Execute(ctx, os.Args[1:])
	stop()

	code, report := cli.ExitCode(err)
	if report {
		fmt.Fprintf(os.Stderr, "somod: %v\n", err)
	}
	os.Exit(code)
}

// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the somod CLI.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. Commands are assembled into a tree in cmd/somod and
// dispatched via [Command.Execute], which parses flags, routes
// subcommands, and prints help with examples. Unknown subcommands and
// flags get a "did you mean" suggestion when one is within edit
// distance 3.
//
// Flags are usually declared as tagged struct fields and bound with
// [FlagsFromParams]. [ProjectFlags] carries the flags shared by every
// command that operates on a project (--config, --root, --log-level, -v)
// and turns them into a loaded [config.Config], module list, and
// logger.
package cli

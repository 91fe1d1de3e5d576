// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the somod
// binary.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain is used if present.
//
// [Info] formats the one-line "somod version" output and [Current]
// returns the same data as a struct for --json output. Snapshots
// record [Short] as their producer.
package version

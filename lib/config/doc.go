// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for somod.
//
// Configuration is loaded from a single file named by either the
// SOMOD_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Commands that
// run without a configuration file use [Default].
//
// The one environment override is the serverless runtime version:
// SOMOD_SERVERLESS_NODEJS_VERSION supplies the default of
// serverless.nodejs_version, falling back to "16". A value written in
// the file always wins.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${SOMOD_ROOT} and ${VAR:-default} patterns are expanded.
// Relative paths are resolved against root_dir.
//
// Key exports:
//
//   - [Config] -- master struct with Serverless, Output, Prune, Snapshot
//   - [Default] -- returns a Config with every default applied
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other somod packages.
package config

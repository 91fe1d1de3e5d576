// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for somod packages.
//
// [NewModuleTree] lays out module packages in a temporary directory the
// way the composer expects to find them on disk: the root module's
// authored serverless/template.yaml, dependencies' built
// build/serverless/template.json, function sources, middleware
// sources, and package.json. [ModuleTree.List] returns the matching
// root-first module list.
//
// [RequireReceive] and [RequireEventually] bound channel waits so a
// stuck watcher fails the test instead of hanging it.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

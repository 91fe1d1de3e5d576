// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package compose runs a whole composition: load every module's
// template, build the extend forest and merge extensions, validate
// every keyword, then process the keywords into plain SAM documents.
//
// [Compose] returns a frozen [Composition]. A [Handler] wraps Compose
// for callers that ask for the composition more than once: the first
// call composes, later calls return the same result (or the same
// error). The handler is an explicit value owned by the caller; there
// is no process-wide state.
//
// Validation problems are reported together as a
// [*keyword.ValidationError]. Loading, extend-graph and processing
// errors stop the composition at the first failure.
package compose

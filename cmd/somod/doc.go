// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Somod composes the serverless templates of a SOMOD module tree into a
// single AWS SAM template.
//
// The module list comes from the manifest written by dependency
// resolution (somod.modules.yaml under the root module by default).
// Configuration is read from the file named by --config or
// $SOMOD_CONFIG; without one, defaults rooted at --root apply.
//
// Commands:
//
//	compose   write the SAM template (and optionally a snapshot)
//	validate  check every module template and report all problems
//	show      print a module's composed document or one merged resource
//	refs      list the references to a resource
//	id        print generated identifiers
//	inspect   read a composition snapshot
//	version   print build information
package main

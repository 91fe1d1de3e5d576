// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package template loads per-module template fragments and resolves the
// cross-module "extend" relationship between their resources.
//
// Each module contributes at most one template: the root module's
// authored serverless/template.yaml, or a dependency's pre-built
// build/serverless/template.json. [LoadAll] reads them concurrently
// through a [Source]; [NewSet] then builds the extend forest and merges
// every extend chain into one [MergedResource] per canonical resource.
//
// A resource that declares SOMOD::Extend layers its Properties onto the
// target resource. Chains are merged breadth-first from the canonical
// root (the resource that extends nothing) outward. Extensions declared
// by modules closer to the root module are merged later and win ties.
// [Merge] applies one extension with per-path rules:
//
//   - REPLACE: the extension's value overwrites the target's
//   - COMBINE (default): objects merged per key, arrays merged
//     index-wise, scalars replaced
//   - APPEND: array items added after the target's items
//   - PREPEND: array items added before the target's items
//
// Every merge step reports the paths it wrote, and the resulting
// [PropertyModuleMap] records which module last wrote each subtree of
// the merged Properties. Keyword processing uses that map to resolve
// keywords contributed by an extension relative to the extending
// module.
//
// A [Set] is read-only once built. Every (module, resource) pair on
// one extend chain resolves to the same *MergedResource.
//
// Errors carry one of the kinds [ErrStructural],
// [ErrUnresolvedReference], [ErrAccessDenied], [ErrTypeMismatch] or
// [ErrMissingArtifact], tested with errors.Is.
package template

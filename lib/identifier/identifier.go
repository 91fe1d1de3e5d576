// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package identifier synthesizes the names that appear in a composed
// template in place of symbolic (module, resource) pairs.
//
// Every function is pure and deterministic: the same inputs produce the
// same outputs in every process. Logical IDs and resource names embed
// an 8-hex-character digest of the module name (sha256 truncated), so
// resources from unrelated modules never collide unless the module
// digests collide, which is negligible at realistic module counts.
//
// Output and parameter names use a reversible hex encoding because the
// target document format restricts them to alphanumerics while
// parameter names may contain characters such as ".".
package identifier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ModuleHashLength is the number of hex characters kept from the module
// digest.
const ModuleHashLength = 8

// ModuleHash returns the first [ModuleHashLength] hex characters of the
// sha256 digest of the module name.
func ModuleHash(moduleName string) string {
	sum := sha256.Sum256([]byte(moduleName))
	return hex.EncodeToString(sum[:])[:ModuleHashLength]
}

// LogicalID returns the logical ID of a module resource in the composed
// template: "r", the module hash, then the local resource ID.
func LogicalID(moduleName, resourceID string) string {
	return "r" + ModuleHash(moduleName) + resourceID
}

// ResourceName returns an Fn::Sub expression producing a physical name
// that is unique per deployed stack: "somod", the stack ID's UUID part,
// the module hash, then the local name.
func ResourceName(moduleName, localName string) map[string]any {
	return map[string]any{
		"Fn::Sub": []any{
			"somod${stackId}${moduleHash}${somodResourceName}",
			map[string]any{
				"stackId": map[string]any{
					"Fn::Select": []any{
						2.0,
						map[string]any{"Fn::Split": []any{"/", map[string]any{"Ref": "AWS::StackId"}}},
					},
				},
				"moduleHash":        ModuleHash(moduleName),
				"somodResourceName": localName,
			},
		},
	}
}

// OutputName returns the template output name for a parameter: "o"
// followed by the hex encoding of the parameter name.
func OutputName(parameterName string) string {
	return "o" + hex.EncodeToString([]byte(parameterName))
}

// ParameterNameFromOutputName inverts [OutputName].
func ParameterNameFromOutputName(outputName string) (string, error) {
	return decodeName("o", outputName)
}

// ParameterName returns the template parameter name for a module
// parameter: "p" followed by the hex encoding of the parameter name.
func ParameterName(parameterName string) string {
	return "p" + hex.EncodeToString([]byte(parameterName))
}

// ParameterNameFromTemplateParameter inverts [ParameterName].
func ParameterNameFromTemplateParameter(templateParameter string) (string, error) {
	return decodeName("p", templateParameter)
}

func decodeName(prefix, encoded string) (string, error) {
	hexPart, ok := strings.CutPrefix(encoded, prefix)
	if !ok {
		return "", fmt.Errorf("name %q does not start with %q", encoded, prefix)
	}
	decoded, err := hex.DecodeString(hexPart)
	if err != nil {
		return "", fmt.Errorf("decoding name %q: %w", encoded, err)
	}
	return string(decoded), nil
}

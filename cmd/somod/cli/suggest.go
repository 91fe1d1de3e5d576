// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/pflag"
)

// suggestionDistance is the largest edit distance still worth suggesting.
const suggestionDistance = 3

// suggestCommand returns the subcommand name closest to unknown, or ""
// if none is within suggestionDistance.
func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, 0, len(commands))
	for _, command := range commands {
		names = append(names, command.Name)
	}
	return closest(unknown, names)
}

// suggestFlag finds the first flag in args that flagSet does not define
// and returns the closest defined flag, with its dash prefix.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var defined []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		defined = append(defined, f.Name)
	})

	for _, arg := range args {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			continue
		}
		long := strings.HasPrefix(arg, "--")
		name := strings.TrimLeft(arg, "-")
		name, _, _ = strings.Cut(name, "=")
		if long && flagSet.Lookup(name) != nil {
			continue
		}
		if !long && len(name) == 1 && flagSet.ShorthandLookup(name) != nil {
			continue
		}
		if suggestion := closest(name, defined); suggestion != "" {
			return "--" + suggestion
		}
		break
	}
	return ""
}

// closest returns the candidate with the smallest edit distance to
// input, or "" if none is within suggestionDistance.
func closest(input string, candidates []string) string {
	best := ""
	bestDistance := suggestionDistance + 1
	for _, candidate := range candidates {
		if distance := fuzzy.LevenshteinDistance(input, candidate); distance < bestDistance {
			bestDistance = distance
			best = candidate
		}
	}
	return best
}

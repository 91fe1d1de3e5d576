// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func TestExecuteDispatchesNestedSubcommands(t *testing.T) {
	t.Parallel()

	var called string
	var received []string
	root := &Command{
		Name:       "somod",
		HelpOutput: &bytes.Buffer{},
		Subcommands: []*Command{
			{Name: "compose", Run: func(context.Context, []string) error { called = "compose"; return nil }},
			{
				Name: "id",
				Subcommands: []*Command{
					{Name: "output", Run: func(_ context.Context, args []string) error {
						called = "id output"
						received = args
						return nil
					}},
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"id", "output", "apiUrl"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "id output" {
		t.Errorf("dispatched to %q, want %q", called, "id output")
	}
	if diff := cmp.Diff([]string{"apiUrl"}, received); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteRunWithSubcommandsFallsBackToRun(t *testing.T) {
	t.Parallel()

	var received []string
	command := &Command{
		Name:        "id",
		Subcommands: []*Command{{Name: "output"}},
		Run: func(_ context.Context, args []string) error {
			received = args
			return nil
		},
	}
	if err := command.Execute(context.Background(), []string{"@acme/app", "Table"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if diff := cmp.Diff([]string{"@acme/app", "Table"}, received); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	t.Parallel()

	var format string
	var target string
	command := &Command{
		Name: "show",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flagSet.StringVar(&format, "format", "yaml", "output format")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			target = args[0]
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--format", "json", "@acme/app"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if format != "json" || target != "@acme/app" {
		t.Errorf("format = %q, target = %q; want json, @acme/app", format, target)
	}
}

func TestExecuteUnknownFlag(t *testing.T) {
	t.Parallel()

	newCommand := func() *Command {
		return &Command{
			Name: "compose",
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("compose", pflag.ContinueOnError)
				flagSet.Bool("watch", false, "recompose on change")
				flagSet.String("snapshot", "", "snapshot path")
				return flagSet
			},
			Run: func(context.Context, []string) error { return nil },
		}
	}

	err := newCommand().Execute(context.Background(), []string{"--wacth"})
	if err == nil {
		t.Fatal("Execute succeeded with an unknown flag")
	}
	for _, want := range []string{"wacth", "did you mean --watch", "compose --help"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err, want)
		}
	}

	err = newCommand().Execute(context.Background(), []string{"--zzzzzzzz"})
	if err == nil {
		t.Fatal("Execute succeeded with an unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error %q suggests a flag for distant input", err)
	}
}

func TestExecuteUnknownSubcommand(t *testing.T) {
	t.Parallel()

	root := &Command{
		Name: "somod",
		Subcommands: []*Command{
			{Name: "compose"},
			{Name: "validate"},
			{Name: "inspect"},
		},
	}

	err := root.Execute(context.Background(), []string{"valdate"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "validate"`) {
		t.Errorf("Execute(valdate) = %v, want a suggestion for validate", err)
	}
	err = root.Execute(context.Background(), []string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("Execute(zzzzzzzz) = %v, want an error without suggestion", err)
	}
}

func TestExecuteHelp(t *testing.T) {
	t.Parallel()

	for _, arg := range []string{"-h", "--help", "help"} {
		t.Run(arg, func(t *testing.T) {
			t.Parallel()
			var output bytes.Buffer
			root := &Command{
				Name:        "somod",
				Summary:     "Compose module templates",
				HelpOutput:  &output,
				Subcommands: []*Command{{Name: "compose", Summary: "Write the SAM template"}},
			}
			if err := root.Execute(context.Background(), []string{arg}); err != nil {
				t.Fatalf("Execute(%q): %v", arg, err)
			}
			if !strings.Contains(output.String(), "Write the SAM template") {
				t.Errorf("help output missing subcommand summary:\n%s", output.String())
			}
		})
	}
}

func TestExecuteHelpAfterFlags(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	ran := false
	root := &Command{
		Name:       "somod",
		HelpOutput: &output,
		Subcommands: []*Command{{
			Name:  "refs",
			Usage: "somod refs [flags] <module> <resource>",
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("refs", pflag.ContinueOnError)
				flagSet.Bool("json", false, "output as JSON")
				return flagSet
			},
			Run: func(context.Context, []string) error { ran = true; return nil },
		}},
	}
	if err := root.Execute(context.Background(), []string{"refs", "--json", "--help"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran {
		t.Error("Run called for a help request")
	}
	if !strings.Contains(output.String(), "somod refs [flags] <module> <resource>") {
		t.Errorf("help output inherited from parent missing usage:\n%s", output.String())
	}
}

func TestExecuteNoArgsRequiresSubcommand(t *testing.T) {
	t.Parallel()

	root := &Command{
		Name:        "somod",
		HelpOutput:  &bytes.Buffer{},
		Subcommands: []*Command{{Name: "compose"}},
	}
	err := root.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("Execute() = %v, want subcommand required", err)
	}
}

func TestExecuteRejectsFlagsWithoutFlagSet(t *testing.T) {
	t.Parallel()

	command := &Command{Name: "version", Run: func(context.Context, []string) error { return nil }}
	if err := command.Execute(context.Background(), []string{"--verbose"}); err == nil {
		t.Error("Execute accepted a flag on a command without flags")
	}
}

func TestPrintHelp(t *testing.T) {
	t.Parallel()

	command := &Command{
		Name:        "somod",
		Description: "Compose SOMOD module templates into one SAM template.",
		Subcommands: []*Command{
			{Name: "compose", Summary: "Write the SAM template"},
			{Name: "validate", Summary: "Check every module template"},
		},
		Examples: []Example{
			{Description: "Compose the project in the current directory", Command: "somod compose"},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{
		"Compose SOMOD module templates",
		"somod <command> [flags]",
		"Commands:",
		"Check every module template",
		"Examples:",
		"# Compose the project in the current directory",
		"Run 'somod <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\n%s", want, output)
		}
	}
}

func TestPrintHelpFlags(t *testing.T) {
	t.Parallel()

	type params struct {
		JSONOutput
		Provenance bool `flag:"provenance" desc:"show which module set each property"`
	}
	var p params
	command := &Command{
		Name:  "show",
		Usage: "somod show [flags] <module> [resource]",
		Flags: func() *pflag.FlagSet { return FlagsFromParams("show", &p) },
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	for _, want := range []string{"Flags:", "--json", "--provenance", "show which module set each property"} {
		if !strings.Contains(buffer.String(), want) {
			t.Errorf("help output missing %q\n\n%s", want, buffer.String())
		}
	}
}

func TestFullName(t *testing.T) {
	t.Parallel()

	root := &Command{Name: "somod"}
	id := &Command{Name: "id", parent: root}
	output := &Command{Name: "output", parent: id}
	if got := output.fullName(); got != "somod id output" {
		t.Errorf("fullName() = %q, want %q", got, "somod id output")
	}
}

func TestExpectArgs(t *testing.T) {
	t.Parallel()

	if err := ExpectArgs([]string{"a"}, 1, 2, "somod show <module> [resource]"); err != nil {
		t.Errorf("ExpectArgs(1 of 1..2): %v", err)
	}
	err := ExpectArgs(nil, 1, 2, "somod show <module> [resource]")
	if err == nil || err.Error() != "usage: somod show <module> [resource]" {
		t.Errorf("ExpectArgs(0 of 1..2) = %v", err)
	}
	if err := ExpectArgs([]string{"a", "b", "c"}, 1, -1, "x"); err != nil {
		t.Errorf("ExpectArgs(unbounded): %v", err)
	}
}

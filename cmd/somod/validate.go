// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/compose"
	"github.com/sodaru/somod/lib/keyword"
	"github.com/sodaru/somod/lib/template"
)

type validateParams struct {
	cli.ProjectFlags
	cli.JSONOutput
}

// validationReport is the --json output of "somod validate".
type validationReport struct {
	Valid       bool              `json:"valid"`
	Modules     int               `json:"modules"`
	Resources   int               `json:"resources,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Issues      []validationIssue `json:"issues,omitempty"`
}

type validationIssue struct {
	Module   string `json:"module"`
	Keyword  string `json:"keyword,omitempty"`
	Location string `json:"location"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

func validateCommand(stdout io.Writer) *cli.Command {
	var params validateParams
	return &cli.Command{
		Name:    "validate",
		Summary: "Check every module template and report all problems",
		Description: `Run the composition pipeline without writing anything. Every problem
in every module template is reported, not just the first. The exit code
is 1 when any template is invalid.`,
		Usage: "somod validate [flags]",
		Examples: []cli.Example{
			{
				Description: "Validate the project in the current directory",
				Command:     "somod validate",
			},
			{
				Description: "Machine-readable report for CI",
				Command:     "somod validate --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("validate", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 0, 0, "somod validate [flags]"); err != nil {
				return err
			}
			project, err := params.Load()
			if err != nil {
				return err
			}
			composition, err := compose.Compose(ctx, project.ComposeOptions())
			report, err := buildValidationReport(len(project.Modules), composition, err)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(stdout, report); done {
				if err == nil && !report.Valid {
					return &cli.ExitError{Code: cli.ExitProblems}
				}
				return err
			}
			return printValidationReport(stdout, report)
		},
	}
}

// buildValidationReport turns a composition outcome into a report.
// Errors other than validation failures are returned unchanged.
func buildValidationReport(modules int, composition *compose.Composition, err error) (validationReport, error) {
	report := validationReport{Modules: modules}
	if err == nil {
		resources, _ := composition.SAMTemplate()["Resources"].(map[string]any)
		report.Valid = true
		report.Resources = len(resources)
		report.Fingerprint = composition.Fingerprint().String()
		return report, nil
	}

	var validationErr *keyword.ValidationError
	var templateErr *template.Error
	switch {
	case errors.As(err, &validationErr):
		for _, issue := range validationErr.Issues {
			report.Issues = append(report.Issues, validationIssue{
				Module:   issue.Module,
				Keyword:  issue.Keyword,
				Location: issue.Location(),
				Kind:     errorKind(issue.Err),
				Message:  issue.Err.Error(),
			})
		}
	case errors.As(err, &templateErr):
		// Structural failures while building the template set stop the
		// pipeline before keyword validation.
		report.Issues = []validationIssue{{Kind: errorKind(templateErr), Message: templateErr.Error()}}
	default:
		return report, err
	}
	return report, nil
}

func errorKind(err error) string {
	var templateErr *template.Error
	if errors.As(err, &templateErr) && templateErr.Kind != nil {
		return templateErr.Kind.Error()
	}
	return "error"
}

func printValidationReport(w io.Writer, report validationReport) error {
	if report.Valid {
		_, err := fmt.Fprintf(w, "valid: %d modules, %d resources (fingerprint %s)\n",
			report.Modules, report.Resources, report.Fingerprint[:12])
		return err
	}
	for _, issue := range report.Issues {
		prefix := issue.Kind
		if issue.Module != "" {
			prefix = issue.Module + ": " + issue.Location
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", prefix, issue.Message); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%d problem(s) found\n", len(report.Issues)); err != nil {
		return err
	}
	return &cli.ExitError{Code: cli.ExitProblems}
}

// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/module"
	"github.com/sodaru/somod/lib/template"
)

func newResolver(t *testing.T, names []string, documents map[string]string) *Resolver {
	t.Helper()
	modules := make([]module.Module, len(names))
	for i, name := range names {
		modules[i] = module.Module{Name: name, PackageLocation: "/m/" + name, Root: i == 0}
	}
	list, err := module.NewList(modules)
	if err != nil {
		t.Fatal(err)
	}
	templates, err := template.LoadAll(context.Background(), template.MemorySource(documents), list, nil)
	if err != nil {
		t.Fatal(err)
	}
	set, err := template.NewSet(list, templates)
	if err != nil {
		t.Fatal(err)
	}
	return NewResolver(set)
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	target := template.ResourceIdentifier{Module: "@x/a", Resource: "R1"}
	tests := []struct {
		name    string
		source  string
		policy  template.AccessPolicy
		allowed bool
	}{
		{"module policy, other module in scope", "@x/b", template.AccessModule, false},
		{"module policy, same module", "@x/a", template.AccessModule, true},
		{"scope policy, same scope", "@x/b", template.AccessScope, true},
		{"scope policy, other scope", "@y/b", template.AccessScope, false},
		{"empty policy defaults to scope", "@x/c", "", true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			errs := CheckAccess(test.source, target, test.policy)
			if allowed := len(errs) == 0; allowed != test.allowed {
				t.Fatalf("allowed = %v, want %v (errors: %v)", allowed, test.allowed, errs)
			}
			if !test.allowed && !errors.Is(errs[0], template.ErrAccessDenied) {
				t.Errorf("error kind = %v, want ErrAccessDenied", errs[0])
			}
		})
	}

	errs := CheckAccess("@x/b", target, template.AccessModule)
	want := `Referenced module resource {@x/a, R1} can not be accessed from module @x/b (has "module" access).`
	if errs[0].Error() != want {
		t.Errorf("message = %q, want %q", errs[0], want)
	}
}

const referenceCorpus = `{"Resources": {
	"Table": {"Type": "AWS::DynamoDB::Table",
		"SOMOD::Output": {"default": false, "attributes": ["Arn"]}},
	"Queue": {"Type": "AWS::SQS::Queue", "SOMOD::Output": {"default": true}},
	"Hidden": {"Type": "AWS::SQS::Queue", "SOMOD::Access": "module", "SOMOD::Output": {"default": true}},
	"Plain": {"Type": "AWS::SQS::Queue"},
	"Ext": {"Type": "AWS::SQS::Queue", "SOMOD::Extend": {"resource": "Queue"}}
}}`

func TestValidateRefMessages(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t, []string{"@x/app", "@x/lib"}, map[string]string{
		"@x/lib": referenceCorpus,
		"@x/app": `{"Resources": {}}`,
	})

	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"missing", Ref{Module: "@x/lib", Resource: "Nope"}, "not found"},
		{"extending", Ref{Module: "@x/lib", Resource: "Ext"}, "must not have SOMOD::Extend"},
		{"no output", Ref{Module: "@x/lib", Resource: "Plain"}, "does not have SOMOD::Output"},
		{"unlisted attribute", Ref{Module: "@x/lib", Resource: "Table", Attribute: "StreamArn"}, "does not have attribute StreamArn in SOMOD::Output"},
		{"default false", Ref{Module: "@x/lib", Resource: "Table"}, "does not have default set to true in SOMOD::Output"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			errs := resolver.ValidateRef("@x/app", test.ref, "Resources/Fn/Properties/X")
			if len(errs) != 1 {
				t.Fatalf("errors = %v, want one", errs)
			}
			want := "Referenced module resource {@x/lib, " + test.ref.Resource + "} " + test.want +
				`. Referenced in "@x/app" at "Resources/Fn/Properties/X"`
			if errs[0].Error() != want {
				t.Errorf("message = %q\nwant      %q", errs[0], want)
			}
		})
	}
}

func TestResolveRef(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t, []string{"@x/app", "@x/lib"}, map[string]string{
		"@x/lib": referenceCorpus,
	})
	tableID := identifier.LogicalID("@x/lib", "Table")

	value, err := resolver.ResolveRef("@x/app", Ref{Module: "@x/lib", Resource: "Table", Attribute: "Arn"}, "p")
	if err != nil {
		t.Fatalf("listed attribute: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"Fn::GetAtt": []any{tableID, "Arn"}}, value); diff != "" {
		t.Errorf("GetAtt mismatch (-want +got):\n%s", diff)
	}

	value, err = resolver.ResolveRef("@x/lib", Ref{Resource: "Queue"}, "p")
	if err != nil {
		t.Fatalf("local default ref: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"Ref": identifier.LogicalID("@x/lib", "Queue")}, value); diff != "" {
		t.Errorf("Ref mismatch (-want +got):\n%s", diff)
	}

	if _, err := resolver.ResolveRef("@x/app", Ref{Module: "@x/lib", Resource: "Hidden"}, "p"); !errors.Is(err, template.ErrAccessDenied) {
		t.Errorf("module-access target error = %v, want ErrAccessDenied", err)
	}
	if _, err := resolver.ResolveRef("@x/lib", Ref{Resource: "Hidden"}, "p"); err != nil {
		t.Errorf("own module-access resource: %v", err)
	}
}

func TestValidateTarget(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t, []string{"@x/app", "@x/lib"}, map[string]string{
		"@x/lib": referenceCorpus,
	})
	from := template.ResourceIdentifier{Module: "@x/app", Resource: "Fn"}

	errs := resolver.ValidateTarget(RelationDependsOn, from, template.ResourceIdentifier{Module: "@x/lib", Resource: "Gone"})
	want := "Dependent module resource {@x/lib, Gone} not found. Depended from {@x/app, Fn}"
	if len(errs) != 1 || errs[0].Error() != want {
		t.Errorf("errors = %v, want %q", errs, want)
	}
	if errs := resolver.ValidateTarget(RelationDependsOn, from, template.ResourceIdentifier{Module: "@x/lib", Resource: "Queue"}); len(errs) != 0 {
		t.Errorf("existing target: %v", errs)
	}
}

func TestLogicalIDFollowsExtendChain(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t, []string{"@x/app", "@x/lib"}, map[string]string{
		"@x/lib": referenceCorpus,
	})
	id, err := resolver.LogicalID(template.ResourceIdentifier{Module: "@x/lib", Resource: "Ext"})
	if err != nil {
		t.Fatal(err)
	}
	if want := identifier.LogicalID("@x/lib", "Queue"); id != want {
		t.Errorf("LogicalID = %q, want canonical %q", id, want)
	}
}

func TestParseRef(t *testing.T) {
	t.Parallel()

	ref, err := ParseRef(map[string]any{"module": "m", "resource": "r", "attribute": "Arn"})
	if err != nil {
		t.Fatal(err)
	}
	if ref != (Ref{Module: "m", Resource: "r", Attribute: "Arn"}) {
		t.Errorf("ref = %+v", ref)
	}
	for _, bad := range []any{"r", map[string]any{}, map[string]any{"resource": 3.0}} {
		if _, err := ParseRef(bad); !errors.Is(err, template.ErrStructural) {
			t.Errorf("ParseRef(%v) error = %v, want structural", bad, err)
		}
	}
}

func TestFindReferences(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t, []string{"@x/app", "@x/lib"}, map[string]string{
		"@x/lib": `{"Resources": {
			"Layer": {"Type": "AWS::Serverless::LayerVersion"},
			"Other": {"Type": "AWS::Serverless::LayerVersion"},
			"Fn": {"Type": "AWS::Serverless::Function",
				"Properties": {"Layers": [{"SOMOD::Ref": {"resource": "Layer"}}]}}}}`,
		"@x/app": `{"Resources": {
			"Fn": {"Type": "AWS::Serverless::Function",
				"SOMOD::DependsOn": [{"module": "@x/lib", "resource": "Other"}, {"module": "@x/lib", "resource": "Layer"}],
				"Properties": {"Layers": [{"SOMOD::Ref": {"module": "@x/lib", "resource": "Layer"}}]}}}}`,
	})

	references := FindReferences(resolver.Set(), template.ResourceIdentifier{Module: "@x/lib", Resource: "Layer"})
	got := map[string][]string{}
	for moduleName, paths := range references {
		for _, path := range paths {
			got[moduleName] = append(got[moduleName], path.String())
		}
	}
	want := map[string][]string{
		"@x/lib": {"Resources/Fn/Properties/Layers/0"},
		"@x/app": {"Resources/Fn/SOMOD::DependsOn/1", "Resources/Fn/Properties/Layers/0"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
	if references.Count() != 3 {
		t.Errorf("Count = %d, want 3", references.Count())
	}

	if unused := FindReferences(resolver.Set(), template.ResourceIdentifier{Module: "@x/app", Resource: "Fn"}); len(unused) != 0 {
		t.Errorf("unreferenced resource has references: %v", unused)
	}
}

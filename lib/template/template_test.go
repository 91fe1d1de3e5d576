// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/module"
)

// moduleList builds a root-first module list; the first name is the
// root.
func moduleList(t *testing.T, names ...string) module.List {
	t.Helper()
	modules := make([]module.Module, len(names))
	for i, name := range names {
		modules[i] = module.Module{Name: name, Version: "1.0.0", PackageLocation: "/modules/" + name, Root: i == 0}
	}
	list, err := module.NewList(modules)
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	return list
}

// buildSet loads JSON documents through a MemorySource and builds the
// set.
func buildSet(t *testing.T, modules module.List, documents map[string]string) (*Set, error) {
	t.Helper()
	templates, err := LoadAll(context.Background(), MemorySource(documents), modules, nil)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return NewSet(modules, templates)
}

func mustBuildSet(t *testing.T, modules module.List, documents map[string]string) *Set {
	t.Helper()
	set, err := buildSet(t, modules, documents)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestDecodeTemplateCollectsStructuralErrors(t *testing.T) {
	t.Parallel()

	document := map[string]any{
		"Resources": map[string]any{
			"bad-id":  map[string]any{"Type": "AWS::S3::Bucket"},
			"NoType":  map[string]any{"Properties": map[string]any{}},
			"BadMode": map[string]any{"Type": "AWS::S3::Bucket", "SOMOD::Access": "public"},
			"Good":    map[string]any{"Type": "AWS::S3::Bucket"},
		},
	}
	_, err := DecodeTemplate(module.Module{Name: "app"}, "template.yaml", document)
	if err == nil {
		t.Fatal("DecodeTemplate succeeded, want errors")
	}
	if !errors.Is(err, ErrStructural) {
		t.Errorf("error kind = %v, want ErrStructural", err)
	}
	for _, fragment := range []string{`"bad-id"`, "resource NoType", "resource BadMode"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %s", err, fragment)
		}
	}
}

func TestDecodeTemplateDefaults(t *testing.T) {
	t.Parallel()

	document := map[string]any{
		"Resources": map[string]any{
			"Table": map[string]any{
				"Type":             "AWS::DynamoDB::Table",
				"SOMOD::Output":    map[string]any{"default": true, "attributes": []any{"Arn"}},
				"SOMOD::DependsOn": []any{map[string]any{"resource": "Other"}},
			},
		},
	}
	moduleTemplate, err := DecodeTemplate(module.Module{Name: "@x/app"}, "t", document)
	if err != nil {
		t.Fatalf("DecodeTemplate: %v", err)
	}
	table := moduleTemplate.Resources["Table"]
	if table.Access != AccessScope {
		t.Errorf("default access = %q, want scope", table.Access)
	}
	if !table.Output.Default || !table.Output.HasAttribute("Arn") {
		t.Errorf("output = %+v", table.Output)
	}
	want := []ResourceIdentifier{{Module: "@x/app", Resource: "Other"}}
	if diff := cmp.Diff(want, table.DependsOn); diff != "" {
		t.Errorf("DependsOn mismatch (-want +got):\n%s", diff)
	}
	if len(table.Properties) != 0 {
		t.Errorf("missing Properties should decode as empty, got %v", table.Properties)
	}
}

func TestDirSourceLoadsRootYAMLAndBuiltJSON(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dependency := t.TempDir()
	empty := t.TempDir()

	writeFile(t, filepath.Join(root, "serverless", "template.yaml"), `
Resources:
  Queue:
    Type: AWS::SQS::Queue
    Properties:
      DelaySeconds: 5
`)
	writeFile(t, filepath.Join(dependency, "build", "serverless", "template.json"), `{
  // built artifact
  "Resources": {
    "Bucket": {"Type": "AWS::S3::Bucket", "Properties": {},},
  },
}`)

	modules, err := module.NewList([]module.Module{
		{Name: "app", PackageLocation: root, Root: true},
		{Name: "dep", PackageLocation: dependency},
		{Name: "empty", PackageLocation: empty},
	})
	if err != nil {
		t.Fatal(err)
	}

	templates, err := LoadAll(context.Background(), DirSource{}, modules, nil)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("loaded %d templates, want 2 (module without template skipped)", len(templates))
	}
	if templates[0].Module.Name != "app" || templates[1].Module.Name != "dep" {
		t.Errorf("order = %s, %s", templates[0].Module.Name, templates[1].Module.Name)
	}
	delay := templates[0].Resources["Queue"].Properties["DelaySeconds"]
	if delay != 5.0 {
		t.Errorf("YAML number decoded as %T %v, want float64 5", delay, delay)
	}
	if _, ok := templates[1].Resources["Bucket"]; !ok {
		t.Error("JSONC template not decoded")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeDocumentStringifiesYAMLKeys(t *testing.T) {
	t.Parallel()

	raw := &RawTemplate{Format: FormatYAML, Path: "template.yaml", Data: []byte(`
Resources:
  Table:
    Type: AWS::DynamoDB::Table
    Properties:
      Limits:
        1: one
        true: yes
        ~: none
`)}
	document, err := DecodeDocument(raw)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	got, _ := jsontree.Lookup(document, jsontree.Path{
		jsontree.Key("Resources"), jsontree.Key("Table"), jsontree.Key("Properties"), jsontree.Key("Limits"),
	})
	if diff := cmp.Diff(map[string]any{"1": "one", "true": "yes", "null": "none"}, got); diff != "" {
		t.Errorf("Limits mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdentityWithoutExtensions(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app")
	set := mustBuildSet(t, modules, map[string]string{
		"app": `{"Resources": {"Fn": {"Type": "AWS::Serverless::Function",
			"Properties": {"Timeout": 3, "Tags": [{"Key": "a"}], "Env": {"X": "1"}}}}}`,
	})

	merged, err := set.Resolve("app", "Fn")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	declared, _ := set.Lookup(ResourceIdentifier{Module: "app", Resource: "Fn"})
	if diff := cmp.Diff(declared.Properties, merged.Resource.Properties); diff != "" {
		t.Errorf("merge of a non-extended resource changed Properties (-declared +merged):\n%s", diff)
	}
	if owner := merged.PropertyModuleMap.ModuleAt(jsontree.Path{jsontree.Key("Tags"), jsontree.Index(0)}); owner != "app" {
		t.Errorf("owner = %q, want app", owner)
	}
}

func TestChainSharesMergedResource(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "a", "b", "c")
	set := mustBuildSet(t, modules, map[string]string{
		"c": `{"Resources": {"C": {"Type": "T", "Properties": {"x": 1}}}}`,
		"b": `{"Resources": {"B": {"Type": "T", "SOMOD::Extend": {"module": "c", "resource": "C"}, "Properties": {"y": 2}}}}`,
		"a": `{"Resources": {"A": {"Type": "T", "SOMOD::Extend": {"module": "b", "resource": "B"}, "Properties": {"z": 3}}}}`,
	})

	fromC, err := set.Resolve("c", "C")
	if err != nil {
		t.Fatal(err)
	}
	fromB, _ := set.Resolve("b", "B")
	fromA, _ := set.Resolve("a", "A")
	if fromA != fromC || fromB != fromC {
		t.Fatal("resources on one extend chain must share the MergedResource")
	}
	want := map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}
	if diff := cmp.Diff(want, fromC.Resource.Properties); diff != "" {
		t.Errorf("merged Properties mismatch (-want +got):\n%s", diff)
	}
	wantContributors := []ResourceIdentifier{{"c", "C"}, {"b", "B"}, {"a", "A"}}
	if diff := cmp.Diff(wantContributors, fromC.Contributors); diff != "" {
		t.Errorf("contributors mismatch (-want +got):\n%s", diff)
	}
	if canonical, _ := set.Canonical(ResourceIdentifier{"a", "A"}); canonical != (ResourceIdentifier{"c", "C"}) {
		t.Errorf("Canonical = %v", canonical)
	}
	for path, want := range map[string]string{"/x": "c", "/y": "b", "/z": "a"} {
		parsed, _ := jsontree.ParsePointer(path)
		if got := fromC.PropertyModuleMap.ModuleAt(parsed); got != want {
			t.Errorf("owner of %s = %q, want %q", path, got, want)
		}
	}
}

func TestExtendMissingTarget(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app", "lib")
	_, err := buildSet(t, modules, map[string]string{
		"lib": `{"Resources": {}}`,
		"app": `{"Resources": {"Ext": {"Type": "T", "SOMOD::Extend": {"module": "lib", "resource": "Gone"}}}}`,
	})
	want := "Extended module resource {lib, Gone} not found. Extended from {app, Ext}"
	if err == nil || err.Error() != want {
		t.Fatalf("error = %v, want %q", err, want)
	}
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Error("missing extend target should be ErrUnresolvedReference")
	}
}

func TestExtendTypeMismatch(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app", "lib")
	_, err := buildSet(t, modules, map[string]string{
		"lib": `{"Resources": {"Bucket": {"Type": "AWS::S3::Bucket"}}}`,
		"app": `{"Resources": {"Ext": {"Type": "AWS::SQS::Queue", "SOMOD::Extend": {"module": "lib", "resource": "Bucket"}}}}`,
	})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
	if !strings.HasPrefix(err.Error(), "Can extend only same type of resource. AWS::SQS::Queue can not extend AWS::S3::Bucket") {
		t.Errorf("message = %q", err)
	}
}

func TestExtendCycleRejected(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app")
	_, err := buildSet(t, modules, map[string]string{
		"app": `{"Resources": {
			"A": {"Type": "T", "SOMOD::Extend": {"resource": "B"}},
			"B": {"Type": "T", "SOMOD::Extend": {"resource": "A"}}}}`,
	})
	if !errors.Is(err, ErrStructural) || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("error = %v, want structural cycle error", err)
	}

	_, err = buildSet(t, modules, map[string]string{
		"app": `{"Resources": {"A": {"Type": "T", "SOMOD::Extend": {"resource": "A"}}}}`,
	})
	if !errors.Is(err, ErrStructural) {
		t.Fatalf("self extend error = %v, want structural", err)
	}
}

// TestReplaceThenAppend covers a target extended by two modules: the
// first replaces a scalar, the second appends to an array and, merged
// last, also wins the scalar.
func TestReplaceThenAppend(t *testing.T) {
	t.Parallel()

	// Dependency-first order is base, child1, child2: child2 is declared
	// closer to the root and is merged last.
	modules := moduleList(t, "app", "child2", "child1", "base")
	set := mustBuildSet(t, modules, map[string]string{
		"base": `{"Resources": {"Target": {"Type": "AWS::Serverless::Function",
			"Properties": {"Timeout": 3, "Tags": [{"Key": "owner"}]}}}}`,
		"child1": `{"Resources": {"Child1": {"Type": "AWS::Serverless::Function",
			"SOMOD::Extend": {"module": "base", "resource": "Target", "rules": {"/Timeout": "REPLACE"}},
			"Properties": {"Timeout": 10}}}}`,
		"child2": `{"Resources": {"Child2": {"Type": "AWS::Serverless::Function",
			"SOMOD::Extend": {"module": "base", "resource": "Target", "rules": {"/Tags": "APPEND"}},
			"Properties": {"Timeout": 20, "Tags": [{"Key": "team"}, {"Key": "cost"}]}}}}`,
	})

	merged, err := set.Resolve("base", "Target")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"Timeout": 20.0,
		"Tags": []any{
			map[string]any{"Key": "owner"},
			map[string]any{"Key": "team"},
			map[string]any{"Key": "cost"},
		},
	}
	if diff := cmp.Diff(want, merged.Resource.Properties); diff != "" {
		t.Errorf("merged Properties mismatch (-want +got):\n%s", diff)
	}

	owners := map[string]string{
		"/Timeout":    "child2",
		"/Tags":       "base",
		"/Tags/0":     "base",
		"/Tags/0/Key": "base",
		"/Tags/1":     "child2",
		"/Tags/2/Key": "child2",
	}
	for pointer, want := range owners {
		path, _ := jsontree.ParsePointer(pointer)
		if got := merged.PropertyModuleMap.ModuleAt(path); got != want {
			t.Errorf("owner of %s = %q, want %q", pointer, got, want)
		}
	}
}

func TestAppendThenPrependShiftsProvenance(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app", "prepender", "appender", "base")
	set := mustBuildSet(t, modules, map[string]string{
		"base": `{"Resources": {"Target": {"Type": "T", "Properties": {"Items": ["b0", "b1"]}}}}`,
		"appender": `{"Resources": {"Appender": {"Type": "T",
			"SOMOD::Extend": {"module": "base", "resource": "Target", "rules": {"/Items": "APPEND"}},
			"Properties": {"Items": ["a0", "a1"]}}}}`,
		"prepender": `{"Resources": {"Prepender": {"Type": "T",
			"SOMOD::Extend": {"module": "base", "resource": "Target", "rules": {"/Items": "PREPEND"}},
			"Properties": {"Items": ["p0"]}}}}`,
	})

	merged, err := set.Resolve("base", "Target")
	if err != nil {
		t.Fatal(err)
	}
	items := merged.Resource.Properties["Items"].([]any)
	if diff := cmp.Diff([]any{"p0", "b0", "b1", "a0", "a1"}, items); diff != "" {
		t.Errorf("Items mismatch (-want +got):\n%s", diff)
	}

	wantOwners := []string{"prepender", "base", "base", "appender", "appender"}
	for index, want := range wantOwners {
		path := jsontree.Path{jsontree.Key("Items"), jsontree.Index(index)}
		if got := merged.PropertyModuleMap.ModuleAt(path); got != want {
			t.Errorf("owner of Items[%d] = %q, want %q", index, got, want)
		}
	}
}

func TestPrependAfterReplaceOnSameArray(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app", "second", "first", "base")
	set := mustBuildSet(t, modules, map[string]string{
		"base": `{"Resources": {"Target": {"Type": "T", "Properties": {"Items": ["b0", "b1", "b2"]}}}}`,
		"first": `{"Resources": {"First": {"Type": "T",
			"SOMOD::Extend": {"module": "base", "resource": "Target", "rules": {"/Items": "REPLACE"}},
			"Properties": {"Items": ["r0"]}}}}`,
		"second": `{"Resources": {"Second": {"Type": "T",
			"SOMOD::Extend": {"module": "base", "resource": "Target", "rules": {"/Items": "PREPEND"}},
			"Properties": {"Items": ["p0", "p1"]}}}}`,
	})

	merged, err := set.Resolve("base", "Target")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"p0", "p1", "r0"}, merged.Resource.Properties["Items"]); diff != "" {
		t.Errorf("Items mismatch (-want +got):\n%s", diff)
	}
	for index, want := range []string{"second", "second", "first"} {
		path := jsontree.Path{jsontree.Key("Items"), jsontree.Index(index)}
		if got := merged.PropertyModuleMap.ModuleAt(path); got != want {
			t.Errorf("owner of Items[%d] = %q, want %q", index, got, want)
		}
	}
}

func TestMergeCombineReport(t *testing.T) {
	t.Parallel()

	target := map[string]any{
		"Env":  map[string]any{"A": "1", "B": "2"},
		"List": []any{map[string]any{"x": 1.0}, "keep"},
	}
	extension := map[string]any{
		"Env":  map[string]any{"B": "3", "C": "4"},
		"List": []any{map[string]any{"y": 2.0}, "over", "new"},
	}
	merged, changes := Merge(target, extension, nil)

	want := map[string]any{
		"Env":  map[string]any{"A": "1", "B": "3", "C": "4"},
		"List": []any{map[string]any{"x": 1.0, "y": 2.0}, "over", "new"},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"A": "1", "B": "2"}, target["Env"]); diff != "" {
		t.Errorf("target modified (-want +got):\n%s", diff)
	}

	var reported []string
	for _, change := range changes {
		reported = append(reported, string(change.Rule)+" "+change.Path.Pointer())
	}
	wantReport := []string{
		"REPLACE /Env/B",
		"REPLACE /Env/C",
		"REPLACE /List/0/y",
		"REPLACE /List/1",
		"REPLACE /List/2",
	}
	if diff := cmp.Diff(wantReport, reported); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeReplaceObjectDropsTargetKeys(t *testing.T) {
	t.Parallel()

	merged, changes := Merge(
		map[string]any{"Env": map[string]any{"A": "1"}},
		map[string]any{"Env": map[string]any{"B": "2"}},
		map[string]MergeRule{"/Env": RuleReplace},
	)
	if diff := cmp.Diff(map[string]any{"Env": map[string]any{"B": "2"}}, merged); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}
	if len(changes) != 1 || changes[0].Rule != RuleReplace || changes[0].Path.Pointer() != "/Env" {
		t.Errorf("changes = %+v", changes)
	}
}

func TestOwnerAndEffective(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app", "lib")
	set := mustBuildSet(t, modules, map[string]string{
		"lib": `{"Resources": {"Fn": {"Type": "F", "Properties": {"Memory": 128}}}}`,
		"app": `{"Resources": {"Ext": {"Type": "F",
			"SOMOD::Extend": {"module": "lib", "resource": "Fn"},
			"Properties": {"Role": {"SOMOD::Ref": {"resource": "Role"}}}}}}`,
	})

	rolePath, _ := jsontree.ParsePointer("/Resources/Fn/Properties/Role/SOMOD::Ref")
	if owner := set.Owner("lib", rolePath); owner != "app" {
		t.Errorf("owner of extension-contributed keyword = %q, want app", owner)
	}
	memoryPath, _ := jsontree.ParsePointer("/Resources/Fn/Properties/Memory")
	if owner := set.Owner("lib", memoryPath); owner != "lib" {
		t.Errorf("owner of own property = %q, want lib", owner)
	}

	effective, ok := set.Effective("lib")
	if !ok {
		t.Fatal("Effective(lib) missing")
	}
	properties, _ := jsontree.Lookup(effective, jsontree.Path{jsontree.Key("Resources"), jsontree.Key("Fn"), jsontree.Key("Properties")})
	want := map[string]any{
		"Memory": 128.0,
		"Role":   map[string]any{"SOMOD::Ref": map[string]any{"resource": "Role"}},
	}
	if diff := cmp.Diff(want, properties); diff != "" {
		t.Errorf("effective Properties mismatch (-want +got):\n%s", diff)
	}
	raw, _ := set.Template("lib")
	if _, mutated := raw.Resources["Fn"].Properties["Role"]; mutated {
		t.Error("Effective modified the loaded template")
	}
}

func TestMergeReplacesKeywordObjects(t *testing.T) {
	t.Parallel()

	target := map[string]any{
		"Target": map[string]any{"SOMOD::Ref": map[string]any{"resource": "L1", "attribute": "Arn"}},
		"Plain":  map[string]any{"Value": "old"},
	}
	extension := map[string]any{
		"Target": map[string]any{"SOMOD::Ref": map[string]any{"resource": "L2"}},
		"Plain":  map[string]any{"SOMOD::ModuleName": "app"},
	}
	merged, changes := Merge(target, extension, nil)

	if diff := cmp.Diff(extension, merged); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}
	var reported []string
	for _, change := range changes {
		reported = append(reported, string(change.Rule)+" "+change.Path.Pointer())
	}
	if diff := cmp.Diff([]string{"REPLACE /Plain", "REPLACE /Target"}, reported); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestOverriddenKeywordOwnedByExtension(t *testing.T) {
	t.Parallel()

	modules := moduleList(t, "app", "lib")
	set := mustBuildSet(t, modules, map[string]string{
		"lib": `{"Resources": {"Fn": {"Type": "F", "Properties": {
			"Target": {"SOMOD::Ref": {"resource": "L1", "attribute": "Arn"}}}}}}`,
		"app": `{"Resources": {"Ext": {"Type": "F",
			"SOMOD::Extend": {"module": "lib", "resource": "Fn"},
			"Properties": {"Target": {"SOMOD::Ref": {"resource": "L2"}}}}}}`,
	})

	refPath, _ := jsontree.ParsePointer("/Resources/Fn/Properties/Target/SOMOD::Ref")
	if owner := set.Owner("lib", refPath); owner != "app" {
		t.Errorf("owner of overridden keyword = %q, want app", owner)
	}
	merged, err := set.Resolve("lib", "Fn")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[string]any{"SOMOD::Ref": map[string]any{"resource": "L2"}}
	if diff := cmp.Diff(want, merged.Resource.Properties["Target"]); diff != "" {
		t.Errorf("Target mismatch (-want +got):\n%s", diff)
	}
	if child, ok := merged.PropertyModuleMap.Child(jsontree.Key("Target")); !ok || child.Module != "app" || len(child.Children) != 0 {
		t.Errorf("Target provenance = %+v, want a single node owned by app", child)
	}
}

// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sodaru/somod/lib/config"
	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/keyword"
	"github.com/sodaru/somod/lib/module"
	"github.com/sodaru/somod/lib/template"
	"github.com/sodaru/somod/lib/testutil"
)

const (
	appModule  = "@acme/app"
	baseModule = "@acme/base"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Serverless.NodeJSVersion = "18"
	return cfg
}

// memoryModules returns a root-first module list for MemorySource
// compositions.
func memoryModules(t *testing.T, names ...string) module.List {
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

func newServerlessProject(t *testing.T) *testutil.ModuleTree {
	t.Helper()
	tree := testutil.NewModuleTree(t)
	tree.Module(appModule)
	tree.Module(baseModule)
	tree.Template(baseModule, `{
  "Parameters": {"stage": {"type": "string"}, "api.function": {"type": "string"}},
  "Resources": {
    "UsedLayer": {
      "Type": "AWS::Serverless::LayerVersion",
      "SOMOD::Output": {"default": true},
      "Properties": {"ContentUri": {"SOMOD::FunctionLayer": {"name": "used"}}}
    },
    "UnusedLayer": {
      "Type": "AWS::Serverless::LayerVersion",
      "Properties": {"ContentUri": {"SOMOD::FunctionLayer": {"name": "unused"}}}
    }
  }
}`)
	tree.Template(appModule, `{
  "Resources": {
    "Api": {
      "Type": "AWS::Serverless::Function",
      "SOMOD::Output": {"default": true},
      "Properties": {
        "CodeUri": {"SOMOD::Function": {"name": "api"}},
        "Layers": [{"SOMOD::Ref": {"module": "@acme/base", "resource": "UsedLayer"}}],
        "Environment": {"Variables": {"STAGE": {"SOMOD::Parameter": "stage"}}}
      }
    }
  },
  "Outputs": {
    "api.function": {"SOMOD::Ref": {"resource": "Api"}}
  }
}`)
	tree.Function(appModule, "api")
	return tree
}

func TestComposeSAMTemplate(t *testing.T) {
	t.Parallel()

	tree := newServerlessProject(t)
	composition, err := Compose(context.Background(), Options{Modules: tree.List(), Config: testConfig()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	api := identifier.LogicalID(appModule, "Api")
	usedLayer := identifier.LogicalID(baseModule, "UsedLayer")
	want := map[string]any{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Transform":                "AWS::Serverless-2016-10-31",
		"Globals": map[string]any{
			"Function": map[string]any{
				"Runtime":       "nodejs18.x",
				"Handler":       "index.default",
				"Architectures": []any{"arm64"},
			},
		},
		"Parameters": map[string]any{
			identifier.ParameterName("stage"): map[string]any{"Type": "String"},
		},
		"Resources": map[string]any{
			api: map[string]any{
				"Type": "AWS::Serverless::Function",
				"Properties": map[string]any{
					"CodeUri":     tree.Location(appModule) + "/build/serverless/functions/api",
					"Layers":      []any{map[string]any{"Ref": usedLayer}},
					"Environment": map[string]any{"Variables": map[string]any{"STAGE": map[string]any{"Ref": identifier.ParameterName("stage")}}},
				},
			},
			usedLayer: map[string]any{
				"Type":       "AWS::Serverless::LayerVersion",
				"Properties": map[string]any{"ContentUri": tree.Location(baseModule) + "/build/serverless/functionLayers/used"},
			},
		},
		"Outputs": map[string]any{
			identifier.OutputName("api.function"): map[string]any{"Value": map[string]any{"Ref": api}},
		},
	}
	if diff := cmp.Diff(want, composition.SAMTemplate()); diff != "" {
		t.Errorf("SAM template mismatch (-want +got):\n%s", diff)
	}

	unused := template.ResourceIdentifier{Module: baseModule, Resource: "UnusedLayer"}
	if !composition.Pruned(unused) {
		t.Error("unreferenced dependency layer was not pruned")
	}
	if diff := cmp.Diff([]string{"stage"}, composition.UsedParameters()); diff != "" {
		t.Errorf("used parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeKeepsLayersWhenPruningDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Prune.UnreferencedLayers = false
	tree := newServerlessProject(t)
	composition, err := Compose(context.Background(), Options{Modules: tree.List(), Config: cfg})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	resources := composition.SAMTemplate()["Resources"].(map[string]any)
	if _, ok := resources[identifier.LogicalID(baseModule, "UnusedLayer")]; !ok {
		t.Error("layer removed although pruning is disabled")
	}
}

func TestComposeReportsValidationErrors(t *testing.T) {
	t.Parallel()

	modules := memoryModules(t, appModule)
	source := template.MemorySource{
		appModule: `{"Resources": {"Topic": {"Type": "AWS::SNS::Topic", "Properties": {
			"A": {"SOMOD::Ref": {"resource": "Missing"}},
			"B": {"SOMOD::Parameter": "undeclared"}
		}}}}`,
	}
	_, err := Compose(context.Background(), Options{Modules: modules, Source: source})

	var validationErr *keyword.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Compose error = %v, want *keyword.ValidationError", err)
	}
	if len(validationErr.Issues) != 2 {
		t.Errorf("got %d issues, want 2:\n%v", len(validationErr.Issues), err)
	}
	if !errors.Is(err, template.ErrUnresolvedReference) {
		t.Errorf("errors.Is(err, ErrUnresolvedReference) = false: %v", err)
	}
}

func TestComposeStopsAtExtendErrors(t *testing.T) {
	t.Parallel()

	modules := memoryModules(t, appModule, baseModule)
	source := template.MemorySource{
		appModule: `{"Resources": {"Ext": {"Type": "AWS::SNS::Topic", "SOMOD::Extend": {"module": "@acme/base", "resource": "Gone"}}}}`,
	}
	_, err := Compose(context.Background(), Options{Modules: modules, Source: source})
	if !errors.Is(err, template.ErrUnresolvedReference) {
		t.Fatalf("Compose error = %v, want ErrUnresolvedReference", err)
	}
	if !strings.Contains(err.Error(), "Extended module resource {@acme/base, Gone} not found. Extended from {@acme/app, Ext}") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestResourceSharedAcrossExtendChain(t *testing.T) {
	t.Parallel()

	modules := memoryModules(t, appModule, baseModule)
	source := template.MemorySource{
		baseModule: `{"Resources": {"Topic": {"Type": "AWS::SNS::Topic", "Properties": {"TopicName": "base"}}}}`,
		appModule: `{"Resources": {"MoreTopic": {
			"Type": "AWS::SNS::Topic",
			"SOMOD::Extend": {"module": "@acme/base", "resource": "Topic"},
			"Properties": {"DisplayName": "app"}
		}}}`,
	}
	composition, err := Compose(context.Background(), Options{Modules: modules, Source: source})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	fromExtension, err := composition.Resource(appModule, "MoreTopic")
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	fromCanonical, err := composition.Resource(baseModule, "Topic")
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	if fromExtension != fromCanonical {
		t.Error("extension and canonical resource resolved to different merged resources")
	}
	want := map[string]any{"TopicName": "base", "DisplayName": "app"}
	if diff := cmp.Diff(want, fromCanonical.Resource.Properties); diff != "" {
		t.Errorf("merged properties mismatch (-want +got):\n%s", diff)
	}

	document, err := composition.Document(appModule)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if diff := cmp.Diff(map[string]any{}, document["Resources"]); diff != "" {
		t.Errorf("extending resource still present in app document:\n%s", diff)
	}

	references := composition.References(template.ResourceIdentifier{Module: baseModule, Resource: "Topic"})
	if references.Count() != 1 || len(references[appModule]) != 1 {
		t.Errorf("References = %v, want the one extend link from %s", references, appModule)
	}
}

func TestExtensionOverridesReferenceInItsOwnModule(t *testing.T) {
	t.Parallel()

	modules := memoryModules(t, appModule, baseModule)
	source := template.MemorySource{
		baseModule: `{"Resources": {
			"L1": {"Type": "AWS::SNS::Topic", "SOMOD::Output": {"default": true, "attributes": ["TopicArn"]}},
			"L2": {"Type": "AWS::SNS::Topic", "SOMOD::Output": {"default": true}},
			"Fn": {"Type": "AWS::SQS::Queue", "Properties": {
				"Target": {"SOMOD::Ref": {"resource": "L1", "attribute": "TopicArn"}}
			}}
		}}`,
		appModule: `{"Resources": {
			"L2": {"Type": "AWS::SNS::Topic", "SOMOD::Output": {"default": true}},
			"Ext": {
				"Type": "AWS::SQS::Queue",
				"SOMOD::Extend": {"module": "@acme/base", "resource": "Fn"},
				"Properties": {"Target": {"SOMOD::Ref": {"resource": "L2"}}}
			}
		}}`,
	}
	composition, err := Compose(context.Background(), Options{Modules: modules, Source: source})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	document, err := composition.Document(baseModule)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	resources := document["Resources"].(map[string]any)
	queue := resources[identifier.LogicalID(baseModule, "Fn")].(map[string]any)
	want := map[string]any{"Target": map[string]any{"Ref": identifier.LogicalID(appModule, "L2")}}
	if diff := cmp.Diff(want, queue["Properties"]); diff != "" {
		t.Errorf("queue properties mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentOfUnknownModule(t *testing.T) {
	t.Parallel()

	modules := memoryModules(t, appModule, baseModule)
	source := template.MemorySource{appModule: `{"Resources": {}}`}
	composition, err := Compose(context.Background(), Options{Modules: modules, Source: source})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	document, err := composition.Document(baseModule)
	if err != nil {
		t.Fatalf("Document of a module without template: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"Resources": map[string]any{}}, document); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
	if _, err := composition.Document("@acme/other"); !errors.Is(err, template.ErrUnresolvedReference) {
		t.Errorf("Document of unknown module error = %v, want ErrUnresolvedReference", err)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	modules := memoryModules(t, appModule)
	compose := func(document string, cfg *config.Config) Fingerprint {
		t.Helper()
		composition, err := Compose(context.Background(), Options{
			Modules: modules,
			Source:  template.MemorySource{appModule: document},
			Config:  cfg,
		})
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		return composition.Fingerprint()
	}

	first := compose(`{"Resources": {"Q": {"Type": "AWS::SQS::Queue", "Properties": {"A": 1, "B": 2}}}}`, testConfig())
	reordered := compose(`{"Resources": {"Q": {"Properties": {"B": 2, "A": 1}, "Type": "AWS::SQS::Queue"}}}`, testConfig())
	changed := compose(`{"Resources": {"Q": {"Type": "AWS::SQS::Queue", "Properties": {"A": 1, "B": 3}}}}`, testConfig())

	otherRuntime := testConfig()
	otherRuntime.Serverless.NodeJSVersion = "20"
	runtimeChanged := compose(`{"Resources": {"Q": {"Type": "AWS::SQS::Queue", "Properties": {"A": 1, "B": 2}}}}`, otherRuntime)

	if first != reordered {
		t.Error("key order changed the fingerprint")
	}
	if first == changed {
		t.Error("a property change did not change the fingerprint")
	}
	if first == runtimeChanged {
		t.Error("a runtime change did not change the fingerprint")
	}
	if len(first.String()) != 64 || first.Short() != first.String()[:12] {
		t.Errorf("unexpected encodings %q / %q", first.String(), first.Short())
	}
}

// countingSource counts template reads.
type countingSource struct {
	source template.MemorySource
	reads  atomic.Int64
}

func (c *countingSource) Read(ctx context.Context, mod module.Module) (*template.RawTemplate, error) {
	c.reads.Add(1)
	return c.source.Read(ctx, mod)
}

func TestHandlerComposesOnce(t *testing.T) {
	t.Parallel()

	source := &countingSource{source: template.MemorySource{
		appModule:  `{"Resources": {"Q": {"Type": "AWS::SQS::Queue"}}}`,
		baseModule: `{"Resources": {}}`,
	}}
	handler := NewHandler(Options{Modules: memoryModules(t, appModule, baseModule), Source: source})

	first, err := handler.Composition(context.Background())
	if err != nil {
		t.Fatalf("Composition: %v", err)
	}
	second, err := handler.Composition(context.Background())
	if err != nil {
		t.Fatalf("Composition: %v", err)
	}
	if first != second {
		t.Error("handler returned different compositions")
	}
	if reads := source.reads.Load(); reads != 2 {
		t.Errorf("source read %d times, want 2 (one per module)", reads)
	}
}

func TestHandlerRemembersError(t *testing.T) {
	t.Parallel()

	source := &countingSource{source: template.MemorySource{appModule: `{"Resources": "invalid"}`}}
	handler := NewHandler(Options{Modules: memoryModules(t, appModule), Source: source})

	_, firstErr := handler.Composition(context.Background())
	_, secondErr := handler.Composition(context.Background())
	if firstErr == nil || firstErr != secondErr {
		t.Errorf("errors = %v, %v; want the same non-nil error twice", firstErr, secondErr)
	}
	if reads := source.reads.Load(); reads != 1 {
		t.Errorf("source read %d times, want 1", reads)
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	document := map[string]any{"Resources": map[string]any{"r1": map[string]any{"Type": "AWS::SNS::Topic"}}}

	jsonData, err := Encode(document, "json")
	if err != nil {
		t.Fatalf("Encode json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(jsonData, &decoded); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if diff := cmp.Diff(document, decoded); diff != "" {
		t.Errorf("json round trip mismatch (-want +got):\n%s", diff)
	}

	yamlData, err := Encode(document, "yaml")
	if err != nil {
		t.Fatalf("Encode yaml: %v", err)
	}
	if !strings.Contains(string(yamlData), "Type: AWS::SNS::Topic") {
		t.Errorf("unexpected yaml output:\n%s", yamlData)
	}

	if _, err := Encode(document, "toml"); err == nil {
		t.Error("Encode accepted an unknown format")
	}
}

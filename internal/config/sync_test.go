// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema is embedded in config.go and available to tests via the same package.

// =============================================================================
// Schema Sync Tests
// =============================================================================
// These tests verify Go struct JSON tags match CUE schema field names.
// They catch misalignments at CI time, preventing silent parsing failures.

// extractCUEFields extracts all field names from a CUE struct definition.
// It returns a map of field names to whether the field is optional.
// Nested struct fields are not included; only top-level fields of the given definition.
func extractCUEFields(t *testing.T, val cue.Value) map[string]bool {
	t.Helper()

	fields := make(map[string]bool)

	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}

	for iter.Next() {
		sel := iter.Selector()
		// Skip hidden fields (start with _) and definitions (start with #)
		if sel.LabelType().IsHidden() || sel.IsDefinition() {
			continue
		}

		// The selector string may include the "?" suffix for optional fields
		fieldName := strings.TrimSuffix(sel.String(), "?")
		fields[fieldName] = iter.IsOptional()
	}

	return fields
}

// extractGoJSONTags extracts all JSON field names from a Go struct using reflection.
// It returns a map of JSON tag names to whether the field has "omitempty".
// Fields with json:"-" are excluded.
// Embedded structs are not expanded; only direct fields are returned.
func extractGoJSONTags(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		t.Fatalf("expected struct type, got %s", typ.Kind())
	}

	fields := make(map[string]bool)

	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}

		// Parse the tag: "name,omitempty" or just "name"
		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" || name == "-" {
			continue
		}

		fields[name] = slices.Contains(parts[1:], "omitempty")
	}

	return fields
}

// assertFieldsSync verifies that CUE schema fields and Go struct JSON tags are in sync.
// It checks:
// 1. Every CUE field has a corresponding Go JSON tag
// 2. Every Go JSON tag has a corresponding CUE field
// 3. Optional/omitempty alignment (warning only, not a failure)
func assertFieldsSync(t *testing.T, structName string, cueFields, goFields map[string]bool) {
	t.Helper()

	for field, isOptional := range cueFields {
		hasOmitempty, exists := goFields[field]
		if !exists {
			t.Errorf("[%s] CUE field %q not found in Go struct (missing JSON tag)", structName, field)
			continue
		}
		if isOptional && !hasOmitempty {
			t.Logf("[%s] Note: CUE field %q is optional but Go field lacks omitempty tag", structName, field)
		}
	}

	for field := range goFields {
		if _, exists := cueFields[field]; !exists {
			t.Errorf("[%s] Go JSON tag %q not found in CUE schema (missing CUE field)", structName, field)
		}
	}
}

// getCUESchema compiles the embedded CUE schema and returns the context and compiled value.
func getCUESchema(t *testing.T) (cue.Value, *cue.Context) {
	t.Helper()

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}

	return schema, ctx
}

// lookupDefinition looks up a CUE definition by path (e.g., "#Config").
func lookupDefinition(t *testing.T, schema cue.Value, defPath string) cue.Value {
	t.Helper()

	def := schema.LookupPath(cue.ParsePath(defPath))
	if def.Err() != nil {
		t.Fatalf("failed to lookup CUE definition %s: %v", defPath, def.Err())
	}

	return def
}

// TestConfigSchemaSync verifies Config Go struct matches #Config CUE definition.
func TestConfigSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#Config"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[Config]())

	assertFieldsSync(t, "Config", cueFields, goFields)
}

// TestAttentionConfigSchemaSync verifies AttentionConfig Go struct matches #AttentionConfig CUE definition.
func TestAttentionConfigSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#AttentionConfig"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[AttentionConfig]())

	assertFieldsSync(t, "AttentionConfig", cueFields, goFields)
}

// TestTritonConfigSchemaSync verifies TritonConfig Go struct matches #TritonConfig CUE definition.
func TestTritonConfigSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#TritonConfig"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[TritonConfig]())

	assertFieldsSync(t, "TritonConfig", cueFields, goFields)
}

// TestEngineConfigSchemaSync verifies EngineConfig Go struct matches #EngineConfig CUE definition.
func TestEngineConfigSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#EngineConfig"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[EngineConfig]())

	assertFieldsSync(t, "EngineConfig", cueFields, goFields)
}

// TestPythonConfigSchemaSync verifies PythonConfig Go struct matches #PythonConfig CUE definition.
func TestPythonConfigSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#PythonConfig"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[PythonConfig]())

	assertFieldsSync(t, "PythonConfig", cueFields, goFields)
}

// =============================================================================
// Schema Boundary Tests
// =============================================================================
// These tests verify CUE schema constraints (regex patterns, MaxRunes,
// non-empty, etc.) catch invalid values at parse time.

// validateCUE compiles CUE test data against the embedded config schema's #Config definition.
// It returns nil if the data is valid, or an error describing why validation failed.
func validateCUE(t *testing.T, cueData string) error {
	t.Helper()

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		t.Fatalf("failed to compile schema: %v", schemaValue.Err())
	}

	userValue := ctx.CompileString(cueData)
	if userValue.Err() != nil {
		return fmt.Errorf("CUE compile error: %w", userValue.Err())
	}

	schemaDef := schemaValue.LookupPath(cue.ParsePath("#Config"))
	if schemaDef.Err() != nil {
		t.Fatalf("failed to lookup #Config: %v", schemaDef.Err())
	}

	unified := schemaDef.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE validation error: %w", err)
	}

	return nil
}

// TestGfxArchConstraints verifies #GfxArch only accepts lowercase gfx tokens
// with a 3-4 character hex suffix.
func TestGfxArchConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "gfx90a accepted",
			cueData: `gfx_archs: ["gfx90a"]`,
			wantErr: false,
		},
		{
			name:    "gfx942 accepted",
			cueData: `gfx_archs: ["gfx942"]`,
			wantErr: false,
		},
		{
			name:    "gfx908 accepted",
			cueData: `gfx_archs: ["gfx908"]`,
			wantErr: false,
		},
		{
			name:    "gfx1100 accepted",
			cueData: `gfx_archs: ["gfx1100"]`,
			wantErr: false,
		},
		{
			name:    "multiple tokens accepted",
			cueData: `gfx_archs: ["gfx90a", "gfx942", "gfx1100"]`,
			wantErr: false,
		},
		{
			name:    "empty list accepted",
			cueData: `gfx_archs: []`,
			wantErr: false,
		},
		{
			name:    "non-gfx token rejected",
			cueData: `gfx_archs: ["navi21"]`,
			wantErr: true,
		},
		{
			name:    "uppercase token rejected",
			cueData: `gfx_archs: ["GFX90A"]`,
			wantErr: true,
		},
		{
			name:    "empty token rejected",
			cueData: `gfx_archs: [""]`,
			wantErr: true,
		},
		{
			name:    "bare prefix rejected",
			cueData: `gfx_archs: ["gfx"]`,
			wantErr: true,
		},
		{
			name:    "two-char suffix rejected",
			cueData: `gfx_archs: ["gfx90"]`,
			wantErr: true,
		},
		{
			name:    "five-char suffix rejected",
			cueData: `gfx_archs: ["gfx12345"]`,
			wantErr: true,
		},
		{
			name:    "one invalid token poisons list",
			cueData: `gfx_archs: ["gfx90a", "navi21"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestBaseVariantConstraints verifies base_variant rejects empty strings and
// enforces the 512 rune limit.
func TestBaseVariantConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "image reference accepted",
			cueData: `base_variant: "rocm/pytorch:rocm6.0_ubuntu20.04_py3.9_pytorch_2.1.1"`,
			wantErr: false,
		},
		{
			name:    "empty string rejected",
			cueData: `base_variant: ""`,
			wantErr: true,
		},
		{
			name:    "512-char reference accepted",
			cueData: `base_variant: "` + strings.Repeat("a", 512) + `"`,
			wantErr: false,
		},
		{
			name:    "513-char reference rejected",
			cueData: `base_variant: "` + strings.Repeat("a", 513) + `"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestRepoURLConstraints verifies attention.repo_url rejects empty strings
// and enforces the 2048 rune limit.
func TestRepoURLConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "https URL accepted",
			cueData: `attention: repo_url: "https://github.com/ROCm/flash-attention.git"`,
			wantErr: false,
		},
		{
			name:    "empty string rejected",
			cueData: `attention: repo_url: ""`,
			wantErr: true,
		},
		{
			name:    "2048-char URL accepted",
			cueData: `attention: repo_url: "` + strings.Repeat("a", 2048) + `"`,
			wantErr: false,
		},
		{
			name:    "2049-char URL rejected",
			cueData: `attention: repo_url: "` + strings.Repeat("a", 2049) + `"`,
			wantErr: true,
		},
		{
			name:    "empty revision rejected",
			cueData: `attention: revision: ""`,
			wantErr: true,
		},
		{
			name:    "short commit revision accepted",
			cueData: `attention: revision: "ae7928c"`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestPathConstraints verifies mount_path and workspace_dir reject empty
// strings and enforce the 4096 rune limit.
func TestPathConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "mount path accepted",
			cueData: `mount_path: "/app"`,
			wantErr: false,
		},
		{
			name:    "workspace dir accepted",
			cueData: `workspace_dir: "/vllm-workspace"`,
			wantErr: false,
		},
		{
			name:    "empty mount path rejected",
			cueData: `mount_path: ""`,
			wantErr: true,
		},
		{
			name:    "empty workspace dir rejected",
			cueData: `workspace_dir: ""`,
			wantErr: true,
		},
		{
			name:    "4096-char path accepted",
			cueData: `mount_path: "/` + strings.Repeat("a", 4095) + `"`,
			wantErr: false,
		},
		{
			name:    "4097-char path rejected",
			cueData: `mount_path: "/` + strings.Repeat("a", 4096) + `"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestPythonConstraints verifies python.version requires dotted numeric form
// and python.platform requires "<os>-<arch>" form.
func TestPythonConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "two-component version accepted",
			cueData: `python: version: "3.9"`,
			wantErr: false,
		},
		{
			name:    "three-component version accepted",
			cueData: `python: version: "3.10.2"`,
			wantErr: false,
		},
		{
			name:    "single component rejected",
			cueData: `python: version: "3"`,
			wantErr: true,
		},
		{
			name:    "non-numeric version rejected",
			cueData: `python: version: "py39"`,
			wantErr: true,
		},
		{
			name:    "trailing dot rejected",
			cueData: `python: version: "3."`,
			wantErr: true,
		},
		{
			name:    "platform tag accepted",
			cueData: `python: platform: "linux-x86_64"`,
			wantErr: false,
		},
		{
			name:    "platform without arch rejected",
			cueData: `python: platform: "linux"`,
			wantErr: true,
		},
		{
			name:    "uppercase platform rejected",
			cueData: `python: platform: "LINUX-X86_64"`,
			wantErr: true,
		},
		{
			name:    "platform with empty arch rejected",
			cueData: `python: platform: "linux-"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

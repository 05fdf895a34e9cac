// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

// Simple test schema for parsing tests
const testSchema = `
#TestConfig: {
	image:    string
	parallel: int
	enabled:  bool
	comment?: string
}
`

// testConfig is a simple struct for testing generic parsing
type testConfig struct {
	Image    string `json:"image"`
	Parallel int    `json:"parallel"`
	Enabled  bool   `json:"enabled"`
	Comment  string `json:"comment,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Run("valid config parses successfully", func(t *testing.T) {
		data := []byte(`
image: "rocm/pytorch:latest"
parallel: 4
enabled: true
comment: "A test config"
`)
		result, err := ParseAndDecode[testConfig]([]byte(testSchema), data, "#TestConfig")
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}

		if result.Value.Image != "rocm/pytorch:latest" {
			t.Errorf("expected image='rocm/pytorch:latest', got %q", result.Value.Image)
		}
		if result.Value.Parallel != 4 {
			t.Errorf("expected parallel=4, got %d", result.Value.Parallel)
		}
		if !result.Value.Enabled {
			t.Error("expected enabled=true")
		}
		if result.Value.Comment != "A test config" {
			t.Errorf("expected comment='A test config', got %q", result.Value.Comment)
		}
	})

	t.Run("optional field can be omitted", func(t *testing.T) {
		data := []byte(`
image: "rocm/pytorch:latest"
parallel: 1
enabled: false
`)
		result, err := ParseAndDecode[testConfig]([]byte(testSchema), data, "#TestConfig")
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}

		if result.Value.Comment != "" {
			t.Errorf("expected empty comment, got %q", result.Value.Comment)
		}
	})

	t.Run("invalid type returns error", func(t *testing.T) {
		data := []byte(`
image: "rocm/pytorch:latest"
parallel: "not a number"  // Should be int
enabled: true
`)
		_, err := ParseAndDecode[testConfig]([]byte(testSchema), data, "#TestConfig")
		if err == nil {
			t.Error("expected error for invalid type")
		}
	})

	t.Run("missing required field returns error", func(t *testing.T) {
		data := []byte(`
image: "rocm/pytorch:latest"
// parallel is missing
enabled: true
`)
		_, err := ParseAndDecode[testConfig]([]byte(testSchema), data, "#TestConfig")
		if err == nil {
			t.Error("expected error for missing required field")
		}
	})

	t.Run("WithFilename sets filename in errors", func(t *testing.T) {
		data := []byte(`
image: "rocm/pytorch:latest"
parallel: "invalid"
enabled: true
`)
		_, err := ParseAndDecode[testConfig](
			[]byte(testSchema),
			data,
			"#TestConfig",
			WithFilename("my-config.cue"),
		)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "my-config.cue") {
			t.Errorf("error should contain filename, got: %v", err)
		}
	})

	t.Run("WithConcrete(false) accepts omitted optional values", func(t *testing.T) {
		openSchema := `
#OpenConfig: {
	image?:    string
	parallel?: int
}
`
		data := []byte(`image: "rocm/pytorch:latest"`)
		result, err := ParseAndDecode[testConfig](
			[]byte(openSchema),
			data,
			"#OpenConfig",
			WithConcrete(false),
		)
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}
		if result.Value.Image != "rocm/pytorch:latest" {
			t.Errorf("expected image set, got %q", result.Value.Image)
		}
	})

	t.Run("WithMaxFileSize rejects oversized input", func(t *testing.T) {
		data := []byte(`image: "rocm/pytorch:latest"`)
		_, err := ParseAndDecode[testConfig](
			[]byte(testSchema),
			data,
			"#TestConfig",
			WithMaxFileSize(4),
		)
		if err == nil {
			t.Fatal("expected size error")
		}
		if !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("error should mention size limit, got: %v", err)
		}
	})
}

func TestParseAndDecodeString(t *testing.T) {
	data := []byte(`
image: "rocm/pytorch:latest"
parallel: 2
enabled: true
`)
	result, err := ParseAndDecodeString[testConfig](testSchema, data, "#TestConfig")
	if err != nil {
		t.Fatalf("ParseAndDecodeString failed: %v", err)
	}
	if result.Value.Parallel != 2 {
		t.Errorf("expected parallel=2, got %d", result.Value.Parallel)
	}
}

// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"rocforge/internal/config"
	"rocforge/pkg/fspath"
	"rocforge/pkg/types"
)

// ManifestFileName is the provisioning record written into the workspace.
const ManifestFileName = "rocforge-manifest.toml"

type (
	// Manifest records what one provisioning run produced. It is written
	// into the workspace after staging so downstream tooling can discover
	// the staged artifacts and the environment the run exported.
	Manifest struct {
		RunID       string             `toml:"run_id"`
		BaseVariant string             `toml:"base_variant"`
		CreatedAt   time.Time          `toml:"created_at"`
		Artifacts   []ManifestArtifact `toml:"artifacts"`
		Env         map[string]string  `toml:"env"`
	}

	// ManifestArtifact records one staged artifact.
	ManifestArtifact struct {
		Name        string `toml:"name"`
		Destination string `toml:"destination"`
		SizeBytes   int64  `toml:"size_bytes"`
	}
)

// NewManifest assembles the provisioning record for one run.
func NewManifest(runID string, baseVariant config.ImageRef, staged []StagedArtifact, env map[string]string) Manifest {
	artifacts := make([]ManifestArtifact, len(staged))
	for i, s := range staged {
		artifacts[i] = ManifestArtifact{
			Name:        s.Name,
			Destination: s.Destination.String(),
			SizeBytes:   s.SizeBytes,
		}
	}
	return Manifest{
		RunID:       runID,
		BaseVariant: baseVariant.String(),
		CreatedAt:   time.Now().UTC(),
		Artifacts:   artifacts,
		Env:         env,
	}
}

// WriteManifest writes the manifest into the workspace and returns the
// path it was written to. An existing manifest from a previous run is
// overwritten.
func WriteManifest(workspace types.FilesystemPath, m Manifest) (types.FilesystemPath, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := fspath.JoinStr(workspace, ManifestFileName)
	if err := os.WriteFile(path.String(), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a previously written manifest. Used by tooling that
// inspects what a run staged.
func ReadManifest(path types.FilesystemPath) (Manifest, error) {
	data, err := os.ReadFile(path.String())
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return m, nil
}

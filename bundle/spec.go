// Package bundle builds OCI runtime bundles: a rootfs plus a config.json
// derived from an image's OCI image configuration.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/opencontainers/runtime-spec/specs-go"
)

// ConfigFile is the bundle's runtime specification filename, per the OCI
// runtime spec.
const ConfigFile = "config.json"

// RootfsDir is the default rootfs directory name within a bundle.
const RootfsDir = "rootfs"

const annotationCreated = "org.opencontainers.image.created"

// runtimeSpecVersion is the OCI runtime spec version this bundle's
// config.json declares conformance to.
const runtimeSpecVersion = "1.0"

// Builder is the Bundle Builder (component D): it synthesizes an OCI
// runtime bundle directory (rootfs + config.json) from a mounted rootfs
// path and the originating image's config.
type Builder struct{}

// New creates a Builder.
func New() *Builder { return &Builder{} }

// Build writes a runtime bundle at bundlePath, pointing its root at
// rootfsPath and deriving process/annotations from imgConfig. bundlePath
// must already exist; rootfsPath is typically a snapshot mount managed
// separately by the Snapshotter.
func (b *Builder) Build(bundlePath, rootfsPath string, imgConfig *ociv1.Image) error {
	spec := NewRuntimeSpec(imgConfig)
	spec.Root = &specs.Root{Path: rootfsPath, Readonly: false}

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runtime spec: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filepath.Join(bundlePath, ConfigFile), data, 0o644); err != nil { //nolint:gosec // bundle config is not secret
		return fmt.Errorf("write %s: %w", ConfigFile, err)
	}
	return nil
}

// NewRuntimeSpec derives a runtime-spec Spec from an OCI image config. If
// imgConfig is nil, a bare default Spec is returned.
func NewRuntimeSpec(imgConfig *ociv1.Image) *specs.Spec {
	if imgConfig == nil {
		return &specs.Spec{Version: runtimeSpecVersion}
	}
	return &specs.Spec{
		Version:     runtimeSpecVersion,
		Process:     buildProcess(imgConfig),
		Annotations: buildAnnotations(imgConfig),
	}
}

// buildProcess maps the image config's Entrypoint+Cmd, Env, and WorkingDir
// onto a runtime-spec Process.
func buildProcess(imgConfig *ociv1.Image) *specs.Process {
	cfg := imgConfig.Config

	var args []string
	args = append(args, cfg.Entrypoint...)
	args = append(args, cfg.Cmd...)

	process := &specs.Process{
		Terminal: false,
		Cwd:      "/",
	}
	if len(args) > 0 {
		process.Args = args
	}
	if len(cfg.Env) > 0 {
		process.Env = append([]string{}, cfg.Env...)
	}
	if cfg.WorkingDir != "" {
		process.Cwd = cfg.WorkingDir
	}
	return process
}

// buildAnnotations maps the image config's labels and creation timestamp
// onto runtime-spec annotations. Labels are copied first, then Created is
// set on top — an image could in principle carry a label named the same as
// the created-timestamp annotation, and the actual creation time must win
// over anything a label claims.
func buildAnnotations(imgConfig *ociv1.Image) map[string]string {
	annotations := make(map[string]string, len(imgConfig.Config.Labels)+1)
	for k, v := range imgConfig.Config.Labels {
		annotations[k] = v
	}
	if imgConfig.Created != nil {
		annotations[annotationCreated] = imgConfig.Created.Format("2006-01-02T15:04:05.999999999Z07:00")
	}
	return annotations
}

// Package pipeline holds the shared vocabulary of the asset generation
// pipeline: the error taxonomy, the render port, and the per-invocation job
// workspace.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ArtifactExt is the container produced by the renderer.
const ArtifactExt = ".glb"

// ArtifactContentType is the media type served for artifacts.
const ArtifactContentType = "model/gltf-binary"

// Renderer turns a canonical image into a binary 3D artifact at outputPath.
// Implementations own executable resolution and invocation syntax.
type Renderer interface {
	Render(ctx context.Context, inputImagePath, outputPath string) (*RenderResult, error)
}

// RenderResult is what the subprocess left behind for one invocation.
type RenderResult struct {
	Executable string
	Args       []string
	ExitCode   int
	Stdout     string
	Stderr     string
	OutputPath string
	OutputSize int64
}

// Workspace is a job-scoped temporary directory. Every invocation gets its
// own; Close removes it with everything inside.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a uniquely named directory under root (os.TempDir()
// when root is empty). The name embeds a sanitized label and a random id so
// concurrent invocations for the same product never collide.
func NewWorkspace(root, label string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	prefix := fmt.Sprintf("render-%s-%s-", sanitizeLabel(label), uuid.NewString()[:8])
	dir, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// OutputPath is the absolute location the renderer must write to.
func (w *Workspace) OutputPath() string {
	return w.Path("model" + ArtifactExt)
}

func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}

func sanitizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= 32 {
			break
		}
	}
	if b.Len() == 0 {
		return "job"
	}
	return b.String()
}

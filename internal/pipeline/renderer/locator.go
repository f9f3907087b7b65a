package renderer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

// Platform tags used to key candidate providers.
const (
	PlatformWindows = "windows"
	PlatformDarwin  = "darwin"
	PlatformLinux   = "linux"
)

// DefaultScriptPath is the pipeline script location relative to the install
// root.
const DefaultScriptPath = "scripts/blender/generate_canvas_glb.py"

// CandidateProvider yields absolute executable paths to probe, in order.
type CandidateProvider func() []string

// Location is a resolved executable and the script it runs.
type Location struct {
	Executable string
	Script     string
}

type LocatorConfig struct {
	// Platform defaults to runtime.GOOS.
	Platform string
	// Executable, when set, is probed before every provider.
	Executable string
	// ExtraCandidates are probed after Executable and before the platform
	// providers.
	ExtraCandidates []string
	// BinaryNames are looked up on PATH after all candidates are exhausted.
	BinaryNames []string
	// InstallRoot anchors a relative ScriptPath. Defaults to the directory
	// containing the running binary.
	InstallRoot string
	ScriptPath  string
	// Providers overrides the built-in per-platform candidate providers.
	Providers map[string][]CandidateProvider
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// Locator resolves the renderer lazily and caches the first success. Failed
// lookups are not cached, so installing the tool does not need a restart.
type Locator struct {
	log       *logger.Logger
	platform  string
	explicit  []string
	names     []string
	providers []CandidateProvider
	root      string
	script    string
	lookPath  func(string) (string, error)

	group  singleflight.Group
	mu     sync.RWMutex
	cached *Location
}

func NewLocator(log *logger.Logger, cfg LocatorConfig) *Locator {
	platform := strings.ToLower(strings.TrimSpace(cfg.Platform))
	if platform == "" {
		platform = runtime.GOOS
	}
	providers := cfg.Providers
	if providers == nil {
		providers = DefaultProviders()
	}
	names := cfg.BinaryNames
	if len(names) == 0 {
		names = []string{"blender"}
	}
	lookPath := cfg.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	explicit := make([]string, 0, 1+len(cfg.ExtraCandidates))
	if strings.TrimSpace(cfg.Executable) != "" {
		explicit = append(explicit, strings.TrimSpace(cfg.Executable))
	}
	explicit = append(explicit, cfg.ExtraCandidates...)

	script := strings.TrimSpace(cfg.ScriptPath)
	if script == "" {
		script = DefaultScriptPath
	}
	return &Locator{
		log:       log.With("service", "RendererLocator"),
		platform:  platform,
		explicit:  explicit,
		names:     names,
		providers: providers[platform],
		root:      strings.TrimSpace(cfg.InstallRoot),
		script:    script,
		lookPath:  lookPath,
	}
}

// Locate returns the cached location or resolves it. Concurrent first calls
// share one resolution.
func (l *Locator) Locate(ctx context.Context) (Location, error) {
	l.mu.RLock()
	if l.cached != nil {
		loc := *l.cached
		l.mu.RUnlock()
		return loc, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do("locate", func() (interface{}, error) {
		loc, err := l.resolve()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cached = &loc
		l.mu.Unlock()
		l.log.Info("Renderer resolved", "platform", l.platform, "executable", loc.Executable, "script", loc.Script)
		return loc, nil
	})
	if err != nil {
		return Location{}, err
	}
	return v.(Location), nil
}

// Reset drops the cached location.
func (l *Locator) Reset() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

func (l *Locator) resolve() (Location, error) {
	exe, err := l.resolveExecutable()
	if err != nil {
		return Location{}, err
	}
	script, err := l.resolveScript()
	if err != nil {
		return Location{}, err
	}
	return Location{Executable: exe, Script: script}, nil
}

func (l *Locator) resolveExecutable() (string, error) {
	searched := []string{}
	candidates := append([]string{}, l.explicit...)
	for _, p := range l.providers {
		candidates = append(candidates, p()...)
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		searched = append(searched, c)
		if isExecutableFile(c) {
			abs, err := filepath.Abs(c)
			if err != nil {
				return "", fmt.Errorf("absolute renderer path: %w", err)
			}
			return abs, nil
		}
	}
	for _, name := range l.names {
		searched = append(searched, "PATH:"+name)
		if p, err := l.lookPath(name); err == nil && p != "" {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", fmt.Errorf("absolute renderer path: %w", err)
			}
			return abs, nil
		}
	}
	l.log.Warn("Renderer executable not found", "platform", l.platform, "searched", len(searched))
	return "", &pipeline.RendererNotFoundError{Platform: l.platform, Missing: "executable", Searched: searched}
}

func (l *Locator) resolveScript() (string, error) {
	script := l.script
	if !filepath.IsAbs(script) {
		root := l.root
		if root == "" {
			root = executableDir()
		}
		script = filepath.Join(root, filepath.FromSlash(script))
	}
	abs, err := filepath.Abs(script)
	if err != nil {
		return "", fmt.Errorf("absolute script path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", &pipeline.RendererNotFoundError{Platform: l.platform, Missing: "script", Searched: []string{abs}}
	}
	return abs, nil
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == PlatformWindows {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// DefaultProviders returns the well-known install locations per platform.
func DefaultProviders() map[string][]CandidateProvider {
	return map[string][]CandidateProvider{
		PlatformWindows: {windowsInstallDirs},
		PlatformDarwin:  {darwinAppBundles},
		PlatformLinux:   {linuxInstallDirs},
	}
}

func windowsInstallDirs() []string {
	roots := []string{os.Getenv("ProgramFiles"), `C:\Program Files`}
	out := []string{}
	seen := map[string]bool{}
	for _, root := range roots {
		if root == "" || seen[root] {
			continue
		}
		seen[root] = true
		matches, _ := filepath.Glob(filepath.Join(root, "Blender Foundation", "Blender *", "blender.exe"))
		out = append(out, newestFirst(matches)...)
		out = append(out, filepath.Join(root, "Blender Foundation", "Blender", "blender.exe"))
	}
	return out
}

func darwinAppBundles() []string {
	out := []string{"/Applications/Blender.app/Contents/MacOS/Blender"}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, "Applications", "Blender.app", "Contents", "MacOS", "Blender"))
	}
	return out
}

func linuxInstallDirs() []string {
	out := []string{
		"/usr/bin/blender",
		"/usr/local/bin/blender",
		"/snap/bin/blender",
		"/opt/blender/blender",
	}
	matches, _ := filepath.Glob("/opt/blender-*/blender")
	return append(out, newestFirst(matches)...)
}

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

// installVersion extracts the first dotted version in path, e.g. [4 10] from
// "/opt/blender-4.10-linux-x64/blender". Nil when path carries none.
func installVersion(path string) []int {
	m := versionPattern.FindString(filepath.ToSlash(path))
	if m == "" {
		return nil
	}
	parts := strings.Split(m, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// newestFirst orders versioned install dirs numerically, so "Blender 4.10"
// beats "Blender 4.5". Unversioned paths sort last.
func newestFirst(paths []string) []string {
	sorted := append([]string{}, paths...)
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, vj := installVersion(sorted[i]), installVersion(sorted[j])
		if c := compareVersions(vi, vj); c != 0 {
			return c > 0
		}
		return sorted[i] > sorted[j]
	})
	return sorted
}

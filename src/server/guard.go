package server

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// toolRates is the per-tool requests-per-second budget. Tools without
// an entry fall back to defaultToolRate.
var toolRates = map[string]int{
	"forge_hover":       20,
	"forge_diagnostics": 10,
	"forge_definition":  10,
	"forge_references":  5,
}

const defaultToolRate = 10

// Guard enforces the bridge's access rules: document reads stay inside
// the configured workspace roots, and each tool draws from its own
// rate budget.
type Guard struct {
	roots []string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewGuard canonicalizes the workspace roots up front so symlinked
// roots compare correctly. Roots that do not resolve are dropped; an
// empty root set denies every path.
func NewGuard(roots []string) *Guard {
	g := &Guard{limiters: make(map[string]*rate.Limiter)}
	for _, root := range roots {
		resolved, err := canonicalPath(root)
		if err != nil {
			continue
		}
		g.roots = append(g.roots, resolved)
	}
	return g
}

// CheckPath resolves the path and verifies it sits under one of the
// workspace roots. Returns the canonical path so callers read exactly
// the file that was checked.
func (g *Guard) CheckPath(path string) (string, error) {
	resolved, err := canonicalPath(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", path, err)
	}
	for _, root := range g.roots {
		if resolved == root || strings.HasPrefix(resolved, root+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("access denied: %s is outside the workspace roots", path)
}

// CheckRateLimit consumes one token from the tool's bucket.
func (g *Guard) CheckRateLimit(tool string) error {
	g.mu.Lock()
	limiter, ok := g.limiters[tool]
	if !ok {
		perSecond, found := toolRates[tool]
		if !found {
			perSecond = defaultToolRate
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		g.limiters[tool] = limiter
	}
	g.mu.Unlock()

	if !limiter.Allow() {
		return fmt.Errorf("rate limit exceeded for tool %s", tool)
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

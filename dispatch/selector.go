// Package dispatch selects among functionally-equivalent pure
// implementations of hot-path routines based on hardware capability
// detected once at process start. The selection carries no runtime
// handles and no per-context state, so it is the one piece of
// process-wide state in the module that is safe to share across
// contexts without synchronization.
package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Level identifies an implementation variant by the hardware features
// it requires. Higher levels are preferred when supported.
type Level uint8

const (
	LevelGeneric Level = iota
	LevelSSE2
	LevelNEON
	LevelAVX2
)

func (l Level) String() string {
	switch l {
	case LevelGeneric:
		return "generic"
	case LevelSSE2:
		return "sse2"
	case LevelNEON:
		return "neon"
	case LevelAVX2:
		return "avx2"
	default:
		return "unknown"
	}
}

// CapabilitySet holds the detected hardware features.
type CapabilitySet struct {
	SSE2 bool
	AVX2 bool
	NEON bool
}

// Supports reports whether the capability set can run a variant at the
// given level.
func (c CapabilitySet) Supports(l Level) bool {
	switch l {
	case LevelGeneric:
		return true
	case LevelSSE2:
		return c.SSE2
	case LevelAVX2:
		return c.AVX2
	case LevelNEON:
		return c.NEON
	default:
		return false
	}
}

var (
	detectOnce sync.Once
	detected   CapabilitySet
)

// Detect returns the process's hardware capabilities. Detection runs
// once; the result is immutable for the process lifetime.
func Detect() CapabilitySet {
	detectOnce.Do(func() {
		detected = CapabilitySet{
			SSE2: cpu.X86.HasSSE2,
			AVX2: cpu.X86.HasAVX2,
			NEON: cpu.ARM64.HasASIMD,
		}
	})
	return detected
}

// SelectBest returns the highest supported level among the candidates.
// It is a pure function of its inputs. LevelGeneric is returned when no
// candidate is supported.
func SelectBest(caps CapabilitySet, candidates []Level) Level {
	best := LevelGeneric
	for _, l := range candidates {
		if l > best && caps.Supports(l) {
			best = l
		}
	}
	return best
}

type variant struct {
	level Level
	fn    any
}

// Registry maps kernel names to their implementation variants. It is
// populated at process start and frozen on first lookup; after that it
// is read-only and shared by all contexts.
type Registry struct {
	mu      sync.RWMutex
	kernels map[string][]variant
	frozen  atomic.Bool
}

// NewRegistry returns an empty kernel registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string][]variant)}
}

// Register adds an implementation variant for a kernel. Registration
// after the first Lookup fails.
func (r *Registry) Register(name string, level Level, fn any) error {
	if r.frozen.Load() {
		return fmt.Errorf("dispatch: registry frozen, cannot register %q", name)
	}
	if fn == nil {
		return fmt.Errorf("dispatch: nil implementation for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.kernels[name] {
		if v.level == level {
			return fmt.Errorf("dispatch: duplicate %s variant for %q", level, name)
		}
	}
	r.kernels[name] = append(r.kernels[name], variant{level: level, fn: fn})
	return nil
}

// Lookup returns the best supported variant of a kernel for the
// detected capabilities. The first call freezes the registry.
func (r *Registry) Lookup(name string) (any, Level, bool) {
	r.frozen.Store(true)
	caps := Detect()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found bool
		best  Level
		fn    any
	)
	for _, v := range r.kernels[name] {
		if !caps.Supports(v.level) {
			continue
		}
		if !found || v.level > best {
			found = true
			best = v.level
			fn = v.fn
		}
	}
	return fn, best, found
}

// Default is the process-wide kernel registry.
var Default = NewRegistry()

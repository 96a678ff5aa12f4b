package hostwazero

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/hyperjson/interpstate/typeref"
)

// ManifestEntry names one guest export the adapter requires, together
// with the WIT shape of the value it carries.
type ManifestEntry struct {
	Name   string // bundle name
	Export string // guest export name
	Shape  string // WIT type of the exported value
	Kind   typeref.Kind
}

// DefaultManifest derives the required guest ABI surface from the fixed
// bundle name set. Singletons, types and exception base classes are
// exported i32 globals whose value is the guest-side object address, so
// every entry carries the u32 shape; interned strings are materialized
// through the guest allocator and need no exports.
func DefaultManifest() []ManifestEntry {
	var m []ManifestEntry
	for _, e := range typeref.Entries() {
		switch e.Kind {
		case typeref.KindSingleton:
			m = append(m, ManifestEntry{
				Name:   e.Name,
				Export: "ref:" + e.Name,
				Shape:  "u32",
				Kind:   e.Kind,
			})
		case typeref.KindType:
			m = append(m, ManifestEntry{
				Name:   e.Name,
				Export: "type:" + e.Module + "." + e.Member,
				Shape:  "u32",
				Kind:   e.Kind,
			})
		case typeref.KindException:
			// Exception classes are derived at attach time; the guest
			// only exports the base class they derive from.
			m = append(m, ManifestEntry{
				Name:   e.Name,
				Export: "type:" + e.Module + "." + e.Member,
				Shape:  "u32",
				Kind:   typeref.KindType,
			})
		}
	}
	return m
}

// validateManifest parses every declared shape. A manifest with an
// unparseable shape is a programming error in the adapter's caller and
// is rejected at attach time.
func validateManifest(m []ManifestEntry) error {
	for _, e := range m {
		if e.Export == "" {
			return fmt.Errorf("hostwazero: manifest entry %q has no export", e.Name)
		}
		if _, err := wit.ParseType(e.Shape); err != nil {
			return fmt.Errorf("hostwazero: manifest entry %q has invalid shape %q: %w", e.Name, e.Shape, err)
		}
	}
	return nil
}

// Package selection holds the version and layout the user picked and keeps
// the layout list in step with the chosen version.
package selection

import (
	"fmt"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/releases"
)

// Selection is the chosen version and layout over a Catalog.
//
// The layout list always equals the catalog's layouts for the selected
// version, and the selected layout is always one of them.
type Selection struct {
	catalog releases.Catalog
	version string
	layout  string
}

// New selects the first version and its first layout. An empty catalog
// gives an empty selection.
func New(c releases.Catalog) *Selection {
	s := &Selection{catalog: c}
	if names := c.Names(); len(names) > 0 {
		s.setVersion(names[0])
	}
	return s
}

// Reset swaps in a new catalog and selects its first version and that
// version's first layout, like New.
func (s *Selection) Reset(c releases.Catalog) {
	s.catalog = c
	s.version, s.layout = "", ""
	if names := c.Names(); len(names) > 0 {
		s.setVersion(names[0])
	}
}

// SelectVersion selects a version and resets the layout to its first entry.
func (s *Selection) SelectVersion(name string) error {
	if _, ok := s.catalog.Version(name); !ok {
		return lerrors.E("select version", lerrors.ErrInvalid, name, fmt.Errorf("unknown version %q", name))
	}
	s.setVersion(name)
	return nil
}

func (s *Selection) setVersion(name string) {
	s.version = name
	s.layout = ""
	if layouts := s.catalog.LayoutNames(name); len(layouts) > 0 {
		s.layout = layouts[0]
	}
}

// SelectLayout selects a layout of the current version. Unknown names leave
// the selection unchanged.
func (s *Selection) SelectLayout(name string) error {
	if _, ok := s.catalog.Lookup(s.version, name); !ok {
		return lerrors.E("select layout", lerrors.ErrInvalid, name, fmt.Errorf("unknown layout %q for version %q", name, s.version))
	}
	s.layout = name
	return nil
}

// Version returns the selected version name.
func (s *Selection) Version() string { return s.version }

// Layout returns the selected layout name.
func (s *Selection) Layout() string { return s.layout }

// Catalog returns the catalog the selection is made over.
func (s *Selection) Catalog() releases.Catalog { return s.catalog }

// VersionNames returns all version names in catalog order.
func (s *Selection) VersionNames() []string { return s.catalog.Names() }

// LayoutNames returns the layouts of the selected version.
func (s *Selection) LayoutNames() []string { return s.catalog.LayoutNames(s.version) }

// Current returns the selected version and layout.
func (s *Selection) Current() (releases.Version, releases.Layout, bool) {
	v, ok := s.catalog.Version(s.version)
	if !ok {
		return releases.Version{}, releases.Layout{}, false
	}
	l, ok := s.catalog.Lookup(s.version, s.layout)
	if !ok {
		return v, releases.Layout{}, false
	}
	return v, l, true
}

// Ready reports whether a real layout is selected.
func (s *Selection) Ready() bool {
	_, l, ok := s.Current()
	return ok && !l.IsPlaceholder()
}

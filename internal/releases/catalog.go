package releases

import (
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chazuruo/ledupdater/internal/config"
)

// Layout is one flashable asset of a release.
type Layout struct {
	Name string
	URL  string
}

// IsPlaceholder reports whether l stands in for a release with no layouts.
func (l Layout) IsPlaceholder() bool {
	return l.Name == config.Placeholder && l.URL == ""
}

// Version is one release with its layouts in asset order.
type Version struct {
	Name    string
	Tag     string
	Layouts []Layout
}

// Catalog is the ordered set of versions as returned by the API.
type Catalog struct {
	Versions []Version
}

// BuildCatalog keeps API order, filters assets by suffix ext and
// substitutes the placeholder layout when a release has none.
func BuildCatalog(releases []Release, ext string) Catalog {
	if ext == "" {
		ext = ".hex"
	}
	c := Catalog{Versions: make([]Version, 0, len(releases))}
	seen := make(map[string]bool, len(releases))
	for _, r := range releases {
		name := r.Name
		if name == "" {
			name = r.TagName
		}
		// duplicate names collapse onto the first, as a keyed map would
		if seen[name] {
			continue
		}
		seen[name] = true

		v := Version{Name: name, Tag: r.TagName}
		for _, a := range r.Assets {
			if strings.HasSuffix(a.Name, ext) {
				v.Layouts = append(v.Layouts, Layout{Name: a.Name, URL: a.BrowserDownloadURL})
			}
		}
		if len(v.Layouts) == 0 {
			v.Layouts = []Layout{{Name: config.Placeholder}}
		}
		c.Versions = append(c.Versions, v)
	}
	return c
}

// Len returns the number of versions.
func (c Catalog) Len() int { return len(c.Versions) }

// Names returns release names in API order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.Versions))
	for i, v := range c.Versions {
		names[i] = v.Name
	}
	return names
}

// Version returns the named version.
func (c Catalog) Version(name string) (Version, bool) {
	for _, v := range c.Versions {
		if v.Name == name {
			return v, true
		}
	}
	return Version{}, false
}

// Layouts returns the layouts of the named version, nil if unknown.
func (c Catalog) Layouts(name string) []Layout {
	v, ok := c.Version(name)
	if !ok {
		return nil
	}
	return v.Layouts
}

// LayoutNames returns the layout names of the named version.
func (c Catalog) LayoutNames(name string) []string {
	layouts := c.Layouts(name)
	if layouts == nil {
		return nil
	}
	names := make([]string, len(layouts))
	for i, l := range layouts {
		names[i] = l.Name
	}
	return names
}

// Lookup finds a layout of a version.
func (c Catalog) Lookup(version, layout string) (Layout, bool) {
	for _, l := range c.Layouts(version) {
		if l.Name == layout {
			return l, true
		}
	}
	return Layout{}, false
}

// Latest returns the version with the highest semver, looking at the name
// then the tag. Without any parseable version it falls back to the first.
func (c Catalog) Latest() (Version, bool) {
	if len(c.Versions) == 0 {
		return Version{}, false
	}
	var (
		best    Version
		bestVer *semver.Version
	)
	for _, v := range c.Versions {
		sv := parseVersion(v.Name)
		if sv == nil {
			sv = parseVersion(v.Tag)
		}
		if sv == nil {
			continue
		}
		if bestVer == nil || sv.GreaterThan(bestVer) {
			best, bestVer = v, sv
		}
	}
	if bestVer == nil {
		return c.Versions[0], true
	}
	return best, true
}

func parseVersion(s string) *semver.Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil
	}
	return v
}

// DisplayName turns an asset file name into a label: "radian_v2.hex"
// becomes "Radian V2".
func DisplayName(layout string) string {
	if layout == config.Placeholder {
		return layout
	}
	base := strings.TrimSuffix(layout, path.Ext(layout))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return cases.Title(language.English).String(strings.Join(strings.Fields(base), " "))
}

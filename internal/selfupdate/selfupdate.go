// Package selfupdate replaces the running ledupdater binary with the latest
// GitHub release.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"
	gsu "github.com/creativeprojects/go-selfupdate"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/logging"
)

// BinaryName is the asset prefix of the CLI build. GUI archives share the
// release but are never picked.
const BinaryName = "ledupdater"

// Info describes the newest published release.
type Info struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseNotes    string
	ReleaseURL      string
	PublishedAt     time.Time
	UpdateAvailable bool
}

// Updater checks for and applies releases of one repository.
type Updater struct {
	repo    gsu.Repository
	slug    string
	current string
	exe     string
	up      *gsu.Updater
}

// New creates an Updater for the owner/name slug. current is the running
// version; a current that is not semver always sees the latest release as
// newer.
func New(slug, current string, prerelease bool) (*Updater, error) {
	src, err := gsu.NewGitHubSource(gsu.GitHubConfig{})
	if err != nil {
		return nil, lerrors.E("self update", lerrors.ErrInvalid, slug, err)
	}
	exe, err := gsu.ExecutablePath()
	if err != nil {
		return nil, lerrors.E("self update", lerrors.ErrIO, "", err)
	}
	return newUpdater(src, slug, current, exe, prerelease)
}

func newUpdater(src gsu.Source, slug, current, exe string, prerelease bool) (*Updater, error) {
	if slug == "" {
		return nil, lerrors.E("self update", lerrors.ErrInvalid, "", errors.New("update repository is empty"))
	}
	up, err := gsu.NewUpdater(gsu.Config{
		Source:      src,
		Filters:     []string{AssetFilter(runtime.GOOS, runtime.GOARCH)},
		Prerelease:  prerelease,
		OldSavePath: BackupPath(exe),
	})
	if err != nil {
		return nil, lerrors.E("self update", lerrors.ErrInvalid, slug, err)
	}
	return &Updater{
		repo:    gsu.ParseSlug(slug),
		slug:    slug,
		current: current,
		exe:     exe,
		up:      up,
	}, nil
}

// AssetFilter matches the CLI archive for one platform, e.g.
// ledupdater_linux_amd64.tar.gz or ledupdater_windows_amd64.exe.zip.
// Asset names are lowercased before matching.
func AssetFilter(goos, goarch string) string {
	return fmt.Sprintf(`^%s[_-]%s[_-]%s(v\d)?(\.exe)?(\.zip|\.tar\.gz|\.tgz|\.gz)?$`,
		regexp.QuoteMeta(BinaryName), regexp.QuoteMeta(goos), regexp.QuoteMeta(goarch))
}

// BackupPath is where Apply keeps the replaced executable.
func BackupPath(exe string) string {
	return exe + ".bak"
}

func (u *Updater) latest(ctx context.Context) (*gsu.Release, error) {
	rel, found, err := u.up.DetectLatest(ctx, u.repo)
	if err != nil {
		return nil, lerrors.E("check for update", lerrors.ErrNetwork, u.slug, err)
	}
	if !found {
		return nil, lerrors.E("check for update", lerrors.ErrNotFound, u.slug,
			fmt.Errorf("no %s release for %s/%s", BinaryName, runtime.GOOS, runtime.GOARCH))
	}
	return rel, nil
}

// newer reports whether rel is ahead of the running version. Builds without
// a semver version (dev, a commit hash) always update.
func (u *Updater) newer(rel *gsu.Release) bool {
	cur, err := semver.NewVersion(u.current)
	if err != nil {
		return true
	}
	latest, err := semver.NewVersion(rel.Version())
	if err != nil {
		return false
	}
	return latest.GreaterThan(cur)
}

func (u *Updater) info(rel *gsu.Release, available bool) *Info {
	return &Info{
		CurrentVersion:  u.current,
		LatestVersion:   rel.Version(),
		ReleaseNotes:    rel.ReleaseNotes,
		ReleaseURL:      rel.URL,
		PublishedAt:     rel.PublishedAt,
		UpdateAvailable: available,
	}
}

// Check looks up the latest release without downloading it.
func (u *Updater) Check(ctx context.Context) (*Info, error) {
	rel, err := u.latest(ctx)
	if err != nil {
		return nil, err
	}
	return u.info(rel, u.newer(rel)), nil
}

// Apply downloads the latest release and swaps it in for the running
// executable, keeping the old one at BackupPath. It returns ErrNotFound kind
// when already up to date.
func (u *Updater) Apply(ctx context.Context) (*Info, error) {
	log := logging.For("selfupdate")

	rel, err := u.latest(ctx)
	if err != nil {
		return nil, err
	}
	if !u.newer(rel) {
		return nil, lerrors.E("self update", lerrors.ErrNotFound, u.slug, fmt.Errorf("already on latest version %s", u.current))
	}

	log.WithField("version", rel.Version()).WithField("exe", u.exe).WithField("asset", rel.AssetName).Info("applying update")
	if err := u.up.UpdateTo(ctx, rel, u.exe); err != nil {
		return nil, lerrors.E("self update", lerrors.ErrIO, u.exe, err)
	}
	return u.info(rel, true), nil
}

// CleanOldVersions removes the backup left behind by a previous update.
// A missing backup is not an error.
func (u *Updater) CleanOldVersions() error {
	bak := BackupPath(u.exe)
	if err := os.Remove(bak); err != nil && !errors.Is(err, os.ErrNotExist) {
		return lerrors.E("clean old versions", lerrors.ErrIO, bak, err)
	}
	return nil
}

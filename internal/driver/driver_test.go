package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/fetch"
	"github.com/chazuruo/ledupdater/internal/runner"
	"github.com/chazuruo/ledupdater/internal/testutil"
)

type fakeRunner struct {
	calls  []runner.ExecConfig
	result runner.ExecResult
}

func (f *fakeRunner) Exec(_ context.Context, cfg runner.ExecConfig) runner.ExecResult {
	f.calls = append(f.calls, cfg)
	res := f.result
	res.Command = runner.CommandLine(cfg.Path, cfg.Args)
	return res
}

const archivePath = "/releases/download/v1.0.0/CH34x_Install_Windows_v3_4.zip"

func newTestInstaller(t *testing.T, assets map[string][]byte, run runner.Runner) (*Installer, *testutil.AssetServer, string) {
	t.Helper()
	srv := testutil.NewAssetServer(t, assets)
	cfg := config.DefaultConfig()
	cfg.Tools.Repo = srv.URL
	workDir := t.TempDir()

	inst := NewInstaller(cfg, fetch.NewDownloader(workDir), run)
	inst.goos = "windows"
	return inst, srv, workDir
}

func TestInstall_DownloadsUnpacksAndRuns(t *testing.T) {
	zip := testutil.ZipBytes(t, map[string]string{"CH34x_Install_Windows_v3_4.EXE": "MZ"})
	run := &fakeRunner{result: runner.ExecResult{Success: true}}
	inst, srv, workDir := newTestInstaller(t, map[string][]byte{archivePath: zip}, run)

	var stages []events.Stage
	inst.SetStageFunc(func(s events.Stage, _ string) { stages = append(stages, s) })

	require.NoError(t, inst.Install(context.Background()))

	exe := filepath.Join(workDir, "CH34x_Install_Windows_v3_4", "CH34x_Install_Windows_v3_4.EXE")
	require.Len(t, run.calls, 1)
	assert.Equal(t, exe, run.calls[0].Path)
	assert.Equal(t, []string{archivePath}, srv.Requests())
	assert.NoFileExists(t, filepath.Join(workDir, "CH34x_Install_Windows_v3_4.zip"))
	assert.Equal(t, []events.Stage{events.StageDownload, events.StageUnpack, events.StageDriver, events.StageDone}, stages)
}

func TestInstall_SkipsDownloadWhenPresent(t *testing.T) {
	run := &fakeRunner{result: runner.ExecResult{Success: true}}
	inst, srv, workDir := newTestInstaller(t, nil, run)
	exe := filepath.Join(workDir, "CH34x_Install_Windows_v3_4", "CH34x_Install_Windows_v3_4.EXE")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("MZ"), 0o755))

	require.NoError(t, inst.Install(context.Background()))

	assert.Empty(t, srv.Requests())
	require.Len(t, run.calls, 1)
	assert.Equal(t, exe, run.calls[0].Path)
}

func TestInstall_NestedExe(t *testing.T) {
	zip := testutil.ZipBytes(t, map[string]string{"CH341SER/ch34x_install_windows_v3_4.exe": "MZ"})
	run := &fakeRunner{result: runner.ExecResult{Success: true}}
	inst, _, workDir := newTestInstaller(t, map[string][]byte{archivePath: zip}, run)

	require.NoError(t, inst.Install(context.Background()))

	require.Len(t, run.calls, 1)
	assert.Equal(t, filepath.Join(workDir, "CH34x_Install_Windows_v3_4", "CH341SER", "ch34x_install_windows_v3_4.exe"), run.calls[0].Path)
}

func TestInstall_ExeMissingFromArchive(t *testing.T) {
	zip := testutil.ZipBytes(t, map[string]string{"readme.txt": "hi"})
	run := &fakeRunner{}
	inst, _, _ := newTestInstaller(t, map[string][]byte{archivePath: zip}, run)

	err := inst.Install(context.Background())
	assert.True(t, lerrors.IsNotFound(err), "kind = %q", lerrors.Kind(err))
	assert.Empty(t, run.calls)
}

func TestInstall_NonZeroExit(t *testing.T) {
	zip := testutil.ZipBytes(t, map[string]string{"CH34x_Install_Windows_v3_4.EXE": "MZ"})
	run := &fakeRunner{result: runner.ExecResult{ExitCode: 2}}
	inst, _, _ := newTestInstaller(t, map[string][]byte{archivePath: zip}, run)

	err := inst.Install(context.Background())
	require.Error(t, err)
	pe, ok := lerrors.AsProcessError(err)
	require.True(t, ok)
	assert.Equal(t, 2, pe.ExitCode)
}

func TestInstall_DownloadFails(t *testing.T) {
	run := &fakeRunner{}
	inst, _, _ := newTestInstaller(t, nil, run)

	err := inst.Install(context.Background())
	assert.True(t, lerrors.IsHTTPStatus(err), "kind = %q", lerrors.Kind(err))
	assert.Empty(t, run.calls)
}

func TestInstall_Unsupported(t *testing.T) {
	run := &fakeRunner{}
	inst, srv, _ := newTestInstaller(t, nil, run)
	inst.goos = "linux"

	err := inst.Install(context.Background())
	assert.True(t, lerrors.IsUnsupported(err))
	assert.False(t, inst.Supported())
	assert.Empty(t, srv.Requests())
	assert.Empty(t, run.calls)
}

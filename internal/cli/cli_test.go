package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/releases"
)

func testCatalog() releases.Catalog {
	return releases.Catalog{Versions: []releases.Version{
		{Name: "Night Radian 2.1", Tag: "v2.1.0", Layouts: []releases.Layout{
			{Name: "radian.hex", URL: "u1"}, {Name: "timber_v2.hex", URL: "u2"},
		}},
		{Name: "Night Radian 2.0", Tag: "v2.0.0", Layouts: []releases.Layout{
			{Name: "bixler.hex", URL: "u3"},
		}},
		{Name: "Night Radian 1.0", Tag: "v1.0.0", Layouts: []releases.Layout{
			{Name: config.Placeholder},
		}},
	}}
}

func TestPrintReleases(t *testing.T) {
	tests := []struct {
		format  OutputFormat
		want    []string
		notWant []string
	}{
		{FormatTable, []string{"VERSION", "Night Radian 2.1", "Radian, Timber V2", config.Placeholder}, nil},
		{FormatPlain, []string{"Night Radian 2.1\tradian.hex\n", "Night Radian 2.0\tbixler.hex\n"}, []string{config.Placeholder}},
		{FormatYAML, []string{"- name: Night Radian 2.1", "tag: v2.1.0", "- timber_v2.hex"}, []string{config.Placeholder}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := printReleases(&buf, testCatalog(), tt.format); err != nil {
				t.Fatalf("printReleases() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestPrintReleases_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printReleases(&buf, testCatalog(), FormatJSON); err != nil {
		t.Fatalf("printReleases() error = %v", err)
	}
	var got []releaseOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d releases, want 3", len(got))
	}
	if len(got[2].Layouts) != 0 {
		t.Errorf("placeholder leaked into JSON: %v", got[2].Layouts)
	}
	if got[0].Tag != "v2.1.0" || len(got[0].Layouts) != 2 {
		t.Errorf("first release = %+v", got[0])
	}
}

func TestPrintReleases_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printReleases(&buf, releases.Catalog{}, FormatTable); err != nil {
		t.Fatalf("printReleases() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No releases found") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrintReleases_InvalidFormat(t *testing.T) {
	if err := printReleases(&bytes.Buffer{}, testCatalog(), "xml"); err == nil {
		t.Error("printReleases() expected error for unknown format")
	}
}

func TestSelectFromFlags(t *testing.T) {
	tests := []struct {
		name        string
		opts        FlashOptions
		wantVersion string
		wantLayout  string
		wantErr     bool
	}{
		{"defaults", FlashOptions{}, "Night Radian 2.1", "radian.hex", false},
		{"latest", FlashOptions{Latest: true}, "Night Radian 2.1", "radian.hex", false},
		{"by name", FlashOptions{Version: "Night Radian 2.0"}, "Night Radian 2.0", "bixler.hex", false},
		{"by tag", FlashOptions{Version: "v2.0.0"}, "Night Radian 2.0", "bixler.hex", false},
		{"layout without extension", FlashOptions{Version: "v2.1.0", Layout: "timber_v2"}, "Night Radian 2.1", "timber_v2.hex", false},
		{"layout with extension", FlashOptions{Latest: true, Layout: "timber_v2.hex"}, "Night Radian 2.1", "timber_v2.hex", false},
		{"unknown version", FlashOptions{Version: "v9"}, "", "", true},
		{"layout of another version", FlashOptions{Version: "v2.0.0", Layout: "radian.hex"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := selectFromFlags(testCatalog(), &tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("selectFromFlags() expected error")
				}
				if !lerrors.IsInvalid(err) {
					t.Errorf("error kind = %s, want invalid", lerrors.Kind(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("selectFromFlags() error = %v", err)
			}
			if sel.Version() != tt.wantVersion || sel.Layout() != tt.wantLayout {
				t.Errorf("selection = %s/%s, want %s/%s", sel.Version(), sel.Layout(), tt.wantVersion, tt.wantLayout)
			}
		})
	}
}

func TestSelectFromFlags_LatestEmptyCatalog(t *testing.T) {
	_, err := selectFromFlags(releases.Catalog{}, &FlashOptions{Latest: true})
	if !lerrors.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestPrintPorts(t *testing.T) {
	ports := []portOutput{{Name: "COM3", Baud: 115200}, {Name: "COM4"}}

	var buf bytes.Buffer
	if err := printPorts(&buf, ports, FormatTable, true); err != nil {
		t.Fatalf("printPorts() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"PORT", "BOOTLOADER", "115200 baud", "COM4"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printPorts(&buf, ports, FormatPlain, false); err != nil {
		t.Fatalf("printPorts() error = %v", err)
	}
	if buf.String() != "COM3\nCOM4\n" {
		t.Errorf("plain output = %q", buf.String())
	}

	buf.Reset()
	if err := printPorts(&buf, nil, FormatTable, false); err != nil {
		t.Fatalf("printPorts() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No serial ports found") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestRunVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := runVersion(&buf, &VersionOptions{Short: true}, "1.2.3", "abc", "today", "ci"); err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	if buf.String() != "1.2.3\n" {
		t.Errorf("short output = %q", buf.String())
	}

	buf.Reset()
	if err := runVersion(&buf, &VersionOptions{JSON: true}, "1.2.3", "abc", "today", "ci"); err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	var info VersionInfo
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Commit != "abc" || info.BuiltBy != "ci" {
		t.Errorf("info = %+v", info)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	root := NewRootCommand(BuildInfo{Version: "test"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "init", "--config", path, "--serial-port", "COM7", "--dir", dir, "--no-tui"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init error = %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Flash.Port != "COM7" {
		t.Errorf("port = %q, want COM7", cfg.Flash.Port)
	}

	root = NewRootCommand(BuildInfo{Version: "test"})
	root.SetArgs([]string{"config", "init", "--config", path})
	root.SetOut(&out)
	if err := root.Execute(); !lerrors.IsInvalid(err) {
		t.Errorf("second init error = %v, want invalid", err)
	}

	out.Reset()
	root = NewRootCommand(BuildInfo{Version: "test"})
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "--config", path, "--baud", "57600"})
	if err := root.Execute(); err == nil {
		t.Fatal("config show should reject flags it does not define")
	}

	out.Reset()
	root = NewRootCommand(BuildInfo{Version: "test"})
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "--config", path, "--log-level", "debug"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"[flash]", `port = "COM7"`, `level = "debug"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, out.String())
		}
	}
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fakeFFmpeg = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  case "$a" in
    *.mp4) if [ "$prev" != "-i" ]; then out="$a"; fi ;;
  esac
  prev="$a"
done
printf 'scaled' > "$out"
`

const fakeFFprobe = `#!/bin/sh
cat <<'JSON'
{"streams":[{"codec_type":"video","width":1920,"height":1080}],"format":{"duration":"12.5","size":"2048"}}
JSON
`

type fixture struct {
	root   string
	config string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	ffmpeg := filepath.Join(root, "ffmpeg")
	ffprobe := filepath.Join(root, "ffprobe")
	for path, body := range map[string]string{ffmpeg: fakeFFmpeg, ffprobe: fakeFFprobe} {
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	cfg := fmt.Sprintf(`[storage]
provider = "localfs"
local_root = %q

[staging]
raw_dir = %q
processed_dir = %q

[transcode]
ffmpeg_path = %q
ffprobe_path = %q

[gdrive]
client_secret = "s3cret"

[log]
level = "error"
`, filepath.Join(root, "buckets"), filepath.Join(root, "raw"), filepath.Join(root, "processed"), ffmpeg, ffprobe)

	path := filepath.Join(root, "videoproc.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return fixture{root: root, config: path}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSetupCreatesStaging(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "--config", f.config, "setup")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	for _, dir := range []string{"raw", "processed"} {
		if _, err := os.Stat(filepath.Join(f.root, dir)); err != nil {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
	if !strings.Contains(out, "Raw staging:") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSetupSweepsStaleFiles(t *testing.T) {
	f := newFixture(t)
	raw := filepath.Join(f.root, "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(raw, "old.mp4")
	fresh := filepath.Join(raw, "new.mp4")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", f.config, "setup", "--sweep", "1h")
	if err != nil {
		t.Fatalf("setup --sweep: %v", err)
	}
	if !strings.Contains(out, "Removed 1 stale file(s)") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file not removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
}

func TestProcessPublishes(t *testing.T) {
	f := newFixture(t)
	rawBucket := filepath.Join(f.root, "buckets", "raw-video-bucket")
	if err := os.MkdirAll(rawBucket, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rawBucket, "cat.mp4"), []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", f.config, "process", "cat.mp4")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(out, "Published: processed-cat.mp4") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(filepath.Join(f.root, "buckets", "processed-video-bucket", "processed-cat.mp4"))
	if err != nil {
		t.Fatalf("processed object missing: %v", err)
	}
	if string(data) != "scaled" {
		t.Errorf("processed content = %q", data)
	}
	for _, p := range []string{filepath.Join(f.root, "raw", "cat.mp4"), filepath.Join(f.root, "processed", "processed-cat.mp4")} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s left behind", p)
		}
	}
}

func TestProcessMissingObject(t *testing.T) {
	f := newFixture(t)
	_, err := run(t, "--config", f.config, "process", "nope.mp4")
	if err == nil {
		t.Fatal("expected error for missing raw object")
	}
	if !strings.Contains(err.Error(), "fetching") {
		t.Errorf("error should name the failed stage: %v", err)
	}
}

func TestProbe(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "--config", f.config, "probe", "input.mp4")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	for _, want := range []string{"Input:    1920x1080", "Output:   640x360", "Duration: 12.50s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShowRedacts(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "--config", f.config, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "s3cret") {
		t.Error("secret printed in clear")
	}
	if !strings.Contains(out, "localfs") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestBadConfigFails(t *testing.T) {
	if _, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "setup"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/pkg/reexec"

	"github.com/tos-network/tossig/internal/cmdtest"
	"github.com/tos-network/tossig/params"
)

type testTossigd struct {
	*cmdtest.TestCmd
}

// spawns tossigd with the given command line args.
func runTossigd(t *testing.T, args ...string) *testTossigd {
	tt := new(testTossigd)
	tt.TestCmd = cmdtest.NewTestCmd(t, tt)
	tt.Run("tossigd-test", args...)
	return tt
}

func TestMain(m *testing.M) {
	// Run the app if we've been exec'd as "tossigd-test" in runTossigd.
	reexec.Register("tossigd-test", func() {
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	})
	// check if we have been reexec'd
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

func TestVersion(t *testing.T) {
	tt := runTossigd(t, "version")
	tt.SetTemplateFunc("goos", func() string { return runtime.GOOS })
	tt.SetTemplateFunc("goarch", func() string { return runtime.GOARCH })
	tt.SetTemplateFunc("gover", runtime.Version)
	tt.SetTemplateFunc("version", func() string { return params.VersionWithMeta })
	tt.SetTemplateFunc("gopath", func() string { return os.Getenv("GOPATH") })
	tt.SetTemplateFunc("goroot", runtime.GOROOT)
	tt.Expect(`
Tossigd
Version: {{version}}
Architecture: {{goarch}}
Go Version: {{gover}}
Operating System: {{goos}}
GOPATH={{gopath}}
GOROOT={{goroot}}
`)
	tt.ExpectExit()
}

func TestDumpConfig(t *testing.T) {
	datadir := filepath.Join(t.TempDir(), "ledger-home")
	tt := runTossigd(t, "--datadir", datadir, "--http.port", "9999", "dumpconfig")

	output := string(tt.Output())
	tt.WaitExit()

	for _, want := range []string{
		"[Node]",
		fmt.Sprintf("DataDir = %q", datadir),
		"HTTPPort = 9999",
		"[Ledger]",
		"AccountCacheSize = 4096",
		"[Metrics]",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("dumpconfig output missing %q:\n%s", want, output)
		}
	}
}

func TestUnknownFlag(t *testing.T) {
	tt := runTossigd(t, "--no-such-flag")
	tt.ExpectExit()
	if status := tt.ExitStatus(); status == 0 {
		t.Error("expected non-zero exit for unknown flag")
	}
}

func TestUnknownCommand(t *testing.T) {
	tt := runTossigd(t, "--datadir", t.TempDir(), "frobnicate")
	tt.ExpectExit()
	if status := tt.ExitStatus(); status == 0 {
		t.Error("expected non-zero exit for unknown command")
	}
}

func TestDaemonShutdown(t *testing.T) {
	tt := runTossigd(t, "--datadir", t.TempDir(), "--http.port", "0", "--verbosity", "2")

	// Give the daemon a moment to install its signal handler and open the
	// listener, then ask it to shut down.
	time.Sleep(500 * time.Millisecond)
	tt.Interrupt()
	tt.ExpectExit()
	if status := tt.ExitStatus(); status != 0 {
		t.Errorf("exit status %d, want 0", status)
	}
}

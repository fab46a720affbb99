package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pdf-generator/internal/domain"
)

func TestCreateProfileDir_DefaultAndCustomBase(t *testing.T) {
	dir1, err := createProfileDir("")
	if err != nil {
		t.Fatalf("createProfileDir default base failed: %v", err)
	}
	defer os.RemoveAll(dir1)
	if _, err := os.Stat(dir1); err != nil {
		t.Fatalf("expected created dir to exist: %v", err)
	}

	customBase := filepath.Join(t.TempDir(), "nested")
	dir2, err := createProfileDir(customBase)
	if err != nil {
		t.Fatalf("createProfileDir custom base failed: %v", err)
	}
	if filepath.Dir(dir2) != customBase {
		t.Fatalf("expected profile dir under custom base %q, got %q", customBase, dir2)
	}
}

func TestCreateProfileDir_InvalidBase(t *testing.T) {
	if _, err := createProfileDir("/dev/null/x"); err == nil {
		t.Fatalf("expected error for invalid base dir")
	}
}

func TestLaunch_MissingBinaryCleansUp(t *testing.T) {
	base := t.TempDir()
	e := NewEngine(Options{ExecPath: "/definitely/missing/chrome", UserDataDir: base})

	for i := 0; i < 3; i++ {
		sess, err := e.Launch(context.Background())
		if err == nil {
			_ = sess.Close()
			t.Fatalf("expected launch error with missing chrome binary")
		}
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("read base dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover profile dirs, found %d", len(entries))
	}
}

func TestLaunch_CanceledContext(t *testing.T) {
	e := NewEngine(Options{ExecPath: "/definitely/missing/chrome", UserDataDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Launch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestResolveExecPath_ConfiguredWins(t *testing.T) {
	if got := resolveExecPath("/opt/chrome/chrome"); got != "/opt/chrome/chrome" {
		t.Fatalf("expected configured path, got %q", got)
	}
}

func TestAllocatorOptions_SandboxFlags(t *testing.T) {
	sandboxed := &Engine{opts: Options{}, execPath: ""}
	unsandboxed := &Engine{opts: Options{NoSandbox: true}, execPath: "/bin/chrome"}

	base := len(sandboxed.allocatorOptions("/tmp/p"))
	if got := len(unsandboxed.allocatorOptions("/tmp/p")); got != base+3 {
		t.Fatalf("expected exec path and two sandbox flags on top of %d options, got %d", base, got)
	}
}

func TestSessionClose_IdempotentAndRemovesProfile(t *testing.T) {
	dir, err := createProfileDir(t.TempDir())
	if err != nil {
		t.Fatalf("profile dir: %v", err)
	}
	kills := 0
	s := &session{
		browserCancel: func() { kills++ },
		allocCancel:   func() {},
		profileDir:    dir,
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if kills != 1 {
		t.Fatalf("expected exactly one kill, got %d", kills)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected profile dir removed, stat err=%v", err)
	}
}

func TestMarginsInches(t *testing.T) {
	top, right, bottom, left, err := marginsInches(domain.LayoutDescriptor{
		MarginTop:    "25.4mm",
		MarginRight:  "0mm",
		MarginBottom: "1in",
		MarginLeft:   "72pt",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, got := range map[string]float64{"top": top, "bottom": bottom, "left": left} {
		if got < 0.999999 || got > 1.000001 {
			t.Fatalf("%s: expected 1in, got %v", name, got)
		}
	}
	if right != 0 {
		t.Fatalf("right: expected 0, got %v", right)
	}

	_, _, _, _, err = marginsInches(domain.LayoutDescriptor{MarginTop: "1em", MarginRight: "0mm", MarginBottom: "0mm", MarginLeft: "0mm"})
	if err == nil {
		t.Fatalf("expected error for unsupported unit")
	}
}

func TestWaitForRenderReady_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitForRenderReady(ctx, 10*time.Millisecond); err == nil {
		t.Fatalf("expected canceled-context error")
	}
}

func TestIsSessionInterrupted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: true},
		{name: "deadline", err: fmt.Errorf("run: %w", context.DeadlineExceeded), want: true},
		{name: "target closed", err: errors.New("target closed"), want: true},
		{name: "normal error", err: errors.New("invalid parameters"), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSessionInterrupted(tc.err); got != tc.want {
				t.Fatalf("IsSessionInterrupted(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	if err := classify(context.Canceled); !errors.Is(err, ErrSessionInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interrupted wrapper keeping the cause, got %v", err)
	}
	plain := errors.New("bad frame")
	if err := classify(plain); err != plain {
		t.Fatalf("expected plain error unchanged, got %v", err)
	}
}

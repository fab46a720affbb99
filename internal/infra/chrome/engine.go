package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/infra/logging"
	"pdf-generator/internal/layout"
	"pdf-generator/internal/render"
)

// A4 in inches.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69

	readyPollInterval = 25 * time.Millisecond
)

// ErrSessionInterrupted marks failures caused by the browser going away
// mid-request (killed on deadline, crashed, or closed).
var ErrSessionInterrupted = errors.New("chrome session interrupted")

// Options are the process-wide engine settings.
type Options struct {
	ExecPath    string
	NoSandbox   bool
	UserDataDir string
}

// Engine launches one headless Chrome process per session.
type Engine struct {
	opts     Options
	execPath string
}

var _ render.Engine = (*Engine)(nil)

// NewEngine resolves the Chrome binary once; the result is immutable.
func NewEngine(opts Options) *Engine {
	e := &Engine{opts: opts, execPath: resolveExecPath(opts.ExecPath)}
	logging.Info("Chrome engine configured", "exec_path", e.execPath, "no_sandbox", opts.NoSandbox)
	return e
}

// resolveExecPath prefers the configured binary, then a browser rod can find
// on this host. An empty result leaves the search to chromedp.
func resolveExecPath(configured string) string {
	if configured != "" {
		return configured
	}
	if p, ok := launcher.LookPath(); ok {
		return p
	}
	return ""
}

func createProfileDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	} else if err := os.MkdirAll(base, 0o700); err != nil {
		return "", fmt.Errorf("cannot create profile base dir: %w", err)
	}
	dir, err := os.MkdirTemp(base, "pdfgen-chrome-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

func (e *Engine) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Software rendering only; minimal containers have no usable GPU stack.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if e.execPath != "" {
		opts = append(opts, chromedp.ExecPath(e.execPath))
	}
	if e.opts.NoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// Launch starts a new Chrome process with a fresh profile. On failure every
// partial resource is torn down before returning.
func (e *Engine) Launch(ctx context.Context) (render.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profileDir, err := createProfileDir(e.opts.UserDataDir)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), e.allocatorOptions(profileDir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		profileDir:    profileDir,
	}
	// The browser must die with its request, whatever step is running.
	s.stopWatch = context.AfterFunc(ctx, s.kill)

	// The first Run starts the browser; it has to use the browser context
	// itself or the process would be tied to a shorter-lived context.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = s.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("start chrome: %w", ctxErr)
		}
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return s, nil
}

// session is one Chrome process and its single page.
type session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	profileDir    string
	stopWatch     func() bool

	killOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func (s *session) kill() {
	s.killOnce.Do(func() {
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
}

// Close terminates the browser process and removes its profile. Idempotent.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		s.kill()
		if s.profileDir != "" {
			s.closeErr = os.RemoveAll(s.profileDir)
		}
	})
	return s.closeErr
}

// bind derives a context for one chromedp.Run that is also cancelled by ctx.
func (s *session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// SetContent replaces the blank page's document with html and waits for the
// browser's own load signal.
func (s *session) SetContent(ctx context.Context, html string) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForRenderReady(ctx, readyPollInterval)
		}),
	)
	return classify(err)
}

// PrintToPDF exports the loaded page as an A4 PDF.
func (s *session) PrintToPDF(ctx context.Context, d domain.LayoutDescriptor) ([]byte, error) {
	top, right, bottom, left, err := marginsInches(d)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := s.bind(ctx)
	defer cancel()

	var pdfBuf []byte
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdfBuf, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(a4WidthInches).
			WithPaperHeight(a4HeightInches).
			WithMarginTop(top).
			WithMarginRight(right).
			WithMarginBottom(bottom).
			WithMarginLeft(left).
			WithDisplayHeaderFooter(d.DisplayHeaderFooter).
			WithHeaderTemplate(d.HeaderTemplate).
			WithFooterTemplate(d.FooterTemplate).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, classify(err)
	}
	return pdfBuf, nil
}

func marginsInches(d domain.LayoutDescriptor) (top, right, bottom, left float64, err error) {
	sides := []struct {
		name string
		val  string
		dst  *float64
	}{
		{"top", d.MarginTop, &top},
		{"right", d.MarginRight, &right},
		{"bottom", d.MarginBottom, &bottom},
		{"left", d.MarginLeft, &left},
	}
	for _, side := range sides {
		v, perr := layout.ParseLength(side.val)
		if perr != nil {
			return 0, 0, 0, 0, fmt.Errorf("margin %s: %w", side.name, perr)
		}
		*side.dst = v
	}
	return top, right, bottom, left, nil
}

// waitForRenderReady polls document.readyState until the page reports
// "complete".
func waitForRenderReady(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var state string
		if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
			return err
		}
		if state == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsSessionInterrupted(err) {
		return fmt.Errorf("%w: %w", ErrSessionInterrupted, err)
	}
	return err
}

// IsSessionInterrupted reports whether err means the browser or its target
// is gone rather than a content or protocol problem.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "websocket: close") ||
		strings.Contains(msg, "connection reset")
}

package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pdf-generator/internal/domain"
)

// fakeEngine counts processes the way a real engine would own them.
type fakeEngine struct {
	launchErr  error
	injectErr  error
	exportErr  error
	emptyPDF   bool
	blockStage domain.Stage

	launched atomic.Int64
	closed   atomic.Int64
	live     atomic.Int64
	peak     atomic.Int64

	mu       sync.Mutex
	sessions []*fakeSession
}

type fakeSession struct {
	e       *fakeEngine
	html    string
	closes  atomic.Int64
	onClose func()
}

func (e *fakeEngine) Launch(ctx context.Context) (Session, error) {
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	if e.blockStage == domain.StageLaunch {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e.launched.Add(1)
	live := e.live.Add(1)
	for {
		p := e.peak.Load()
		if live <= p || e.peak.CompareAndSwap(p, live) {
			break
		}
	}
	s := &fakeSession{e: e}
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

func (s *fakeSession) SetContent(ctx context.Context, html string) error {
	if s.e.blockStage == domain.StageInject {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.e.injectErr != nil {
		return s.e.injectErr
	}
	s.html = html
	return nil
}

func (s *fakeSession) PrintToPDF(ctx context.Context, layout domain.LayoutDescriptor) ([]byte, error) {
	if s.e.blockStage == domain.StageExport {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.e.exportErr != nil {
		return nil, s.e.exportErr
	}
	if s.e.emptyPDF {
		return nil, nil
	}
	return []byte("%PDF-1.7\n" + layout.MarginTop + "\n" + s.html), nil
}

func (s *fakeSession) Close() error {
	if s.closes.Add(1) == 1 {
		s.e.closed.Add(1)
		s.e.live.Add(-1)
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

var errBoom = errors.New("boom")

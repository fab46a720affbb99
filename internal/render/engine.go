// Package render drives one rendering-engine session per conversion:
// acquire, inject, export, release.
package render

import (
	"context"

	"pdf-generator/internal/domain"
)

// Engine starts isolated rendering-engine processes.
type Engine interface {
	// Launch starts a new engine process with one blank page. On error the
	// implementation must already have released everything it started.
	Launch(ctx context.Context) (Session, error)
}

// Session is one live engine process owned by a single conversion.
type Session interface {
	SetContent(ctx context.Context, html string) error
	PrintToPDF(ctx context.Context, layout domain.LayoutDescriptor) ([]byte, error)
	// Close terminates the process. It must be safe to call more than once.
	Close() error
}

// Package layout turns loosely typed client layout parameters into the
// unit-qualified descriptor the rendering engine expects.
package layout

import (
	"fmt"
	"strconv"
	"strings"

	"pdf-generator/internal/domain"
)

// HeaderFooterMode selects how the header/footer region is handled.
type HeaderFooterMode string

const (
	// ModeSuppress shows header/footer only when a template has content.
	ModeSuppress HeaderFooterMode = "suppress"
	// ModeReserve always reserves the region and fills missing templates
	// with invisible markup.
	ModeReserve HeaderFooterMode = "reserve"
)

const (
	defaultMargin = "0mm"
	emptyTemplate = "<div></div>"
	mmSuffix      = "mm"
)

// ParseMode validates a configured mode string. An empty string selects
// ModeSuppress.
func ParseMode(s string) (HeaderFooterMode, error) {
	switch HeaderFooterMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSuppress:
		return ModeSuppress, nil
	case ModeReserve:
		return ModeReserve, nil
	}
	return "", fmt.Errorf("unknown header/footer mode %q", s)
}

// Normalizer builds LayoutDescriptors. It never fails: missing or malformed
// inputs resolve to defaults.
type Normalizer struct {
	Mode HeaderFooterMode
}

// NewNormalizer returns a Normalizer for the given mode.
func NewNormalizer(mode HeaderFooterMode) Normalizer {
	return Normalizer{Mode: mode}
}

// Normalize resolves margins and header/footer settings.
func (n Normalizer) Normalize(margin *domain.MarginInput, header, footer string) domain.LayoutDescriptor {
	var m domain.MarginInput
	if margin != nil {
		m = *margin
	}

	d := domain.LayoutDescriptor{
		MarginTop:    resolveMargin(m.Top),
		MarginRight:  resolveMargin(m.Right),
		MarginBottom: resolveMargin(m.Bottom),
		MarginLeft:   resolveMargin(m.Left),
	}

	if n.Mode == ModeReserve {
		d.DisplayHeaderFooter = true
		d.HeaderTemplate = orEmptyTemplate(header)
		d.FooterTemplate = orEmptyTemplate(footer)
		return d
	}

	d.DisplayHeaderFooter = header != "" || footer != ""
	d.HeaderTemplate = header
	d.FooterTemplate = footer
	return d
}

func resolveMargin(v domain.MarginValue) string {
	if f, ok := v.Float(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64) + mmSuffix
	}
	if s, ok := v.Text(); ok && s != "" {
		return s
	}
	return defaultMargin
}

func orEmptyTemplate(tpl string) string {
	if tpl == "" {
		return emptyTemplate
	}
	return tpl
}

package domain

import "encoding/base64"

// LayoutDescriptor is the fully resolved page layout handed to the engine.
// All four margins are unit-qualified; nothing downstream applies defaults.
type LayoutDescriptor struct {
	MarginTop           string
	MarginRight         string
	MarginBottom        string
	MarginLeft          string
	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string
}

// RenderResult wraps one freshly rendered PDF. It is never cached.
type RenderResult struct {
	PDF []byte
}

// Base64 returns the PDF as standard base64 for JSON transport.
func (r RenderResult) Base64() string {
	return base64.StdEncoding.EncodeToString(r.PDF)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/http/middleware"
	"pdf-generator/internal/infra/chrome"
	"pdf-generator/internal/infra/logging"
	"pdf-generator/internal/layout"
	"pdf-generator/internal/render"
)

const (
	journalTimeout   = 3 * time.Second
	renderFailureMsg = "Failed to generate PDF"
)

// Renderer is the part of render.Renderer the handlers use.
type Renderer interface {
	Render(ctx context.Context, html string, d domain.LayoutDescriptor) ([]byte, error)
	Stats(ctx context.Context) (render.Stats, error)
}

// Journal records finished conversions. Implementations must be safe for
// concurrent use.
type Journal interface {
	Record(ctx context.Context, rec domain.ConversionRecord) error
}

// PDFService bundles the dependencies of the conversion endpoints.
type PDFService struct {
	Normalizer layout.Normalizer
	Renderer   Renderer
	Journal    Journal

	pending sync.WaitGroup
}

// NewPDFService creates a PDFService. j may be nil to disable the journal.
func NewPDFService(n layout.Normalizer, r Renderer, j Journal) *PDFService {
	return &PDFService{Normalizer: n, Renderer: r, Journal: j}
}

// HandleGenerate converts html with margins only. Header/footer fields in the
// body are ignored.
func (svc *PDFService) HandleGenerate(c *fiber.Ctx) error {
	req, err := parseConversionRequest(c)
	if err != nil {
		return err
	}
	req.HeaderTemplate, req.FooterTemplate = "", ""
	return svc.convert(c, req)
}

// HandleGenerateWithHeaderFooter converts html with margins and header/footer
// templates.
func (svc *PDFService) HandleGenerateWithHeaderFooter(c *fiber.Ctx) error {
	req, err := parseConversionRequest(c)
	if err != nil {
		return err
	}
	return svc.convert(c, req)
}

func (svc *PDFService) convert(c *fiber.Ctx, req domain.ConversionRequest) error {
	start := time.Now()
	// Fiber reuses these buffers after the handler returns; the journal
	// record outlives it.
	requestID := strings.Clone(middleware.RequestID(c))

	d := svc.Normalizer.Normalize(req.Margin, req.HeaderTemplate, req.FooterTemplate)
	pdf, err := svc.Renderer.Render(c.UserContext(), req.HTML, d)

	rec := domain.ConversionRecord{
		RequestID: requestID,
		Endpoint:  strings.Clone(c.Path()),
		HTMLBytes: len(req.HTML),
		PDFBytes:  len(pdf),
		Duration:  time.Since(start),
		Outcome:   domain.OutcomeSuccess,
		CreatedAt: start.UTC(),
	}

	if err != nil {
		status, code := renderFailureStatus(err)
		rec.Outcome, rec.ErrorCode = domain.OutcomeFailure, code
		svc.record(rec)

		if sessionInterrupted(err) {
			logging.Warn("Chrome session interrupted", "request_id", requestID, "error", err)
		}
		logging.Error("PDF generation failed", "request_id", requestID, "status", status, "code", code, "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": renderFailureMsg,
			"code":  code,
		})
	}

	svc.record(rec)
	logging.Info("PDF generated", "request_id", requestID, "bytes", len(pdf), "duration_ms", rec.Duration.Milliseconds())
	return c.JSON(fiber.Map{
		"pdfBase64": domain.RenderResult{PDF: pdf}.Base64(),
	})
}

// sessionInterrupted reports a browser that went away mid-render. A capacity
// failure never had a browser, even when it ends in a deadline.
func sessionInterrupted(err error) bool {
	var re *domain.RenderError
	if errors.As(err, &re) && re.Stage == domain.StageCapacity {
		return false
	}
	return chrome.IsSessionInterrupted(err)
}

// renderFailureStatus maps a render error to an HTTP status and failure code.
func renderFailureStatus(err error) (int, string) {
	var re *domain.RenderError
	if !errors.As(err, &re) {
		return fiber.StatusInternalServerError, "render_failed"
	}
	switch {
	case re.Timeout:
		return fiber.StatusGatewayTimeout, re.Code()
	case re.Stage == domain.StageCapacity:
		return fiber.StatusServiceUnavailable, re.Code()
	default:
		return fiber.StatusInternalServerError, re.Code()
	}
}

// record writes the journal row off the request path.
func (svc *PDFService) record(rec domain.ConversionRecord) {
	if svc.Journal == nil {
		return
	}
	svc.pending.Add(1)
	go func() {
		defer svc.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := svc.Journal.Record(ctx, rec); err != nil {
			logging.Warn("Conversion journal write failed", "request_id", rec.RequestID, "error", err)
		}
	}()
}

// Wait blocks until every journal write started so far has finished.
func (svc *PDFService) Wait() {
	svc.pending.Wait()
}

// HandleEngineStats exposes gate occupancy and lifecycle counters.
func (svc *PDFService) HandleEngineStats(c *fiber.Ctx) error {
	s, err := svc.Renderer.Stats(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Engine stats unavailable: "+err.Error())
	}
	return c.JSON(s)
}

// parseConversionRequest reads a JSON or urlencoded body. Only a missing html
// field or an undecodable JSON document is rejected; layout fields are left
// for the normalizer to default.
func parseConversionRequest(c *fiber.Ctx) (domain.ConversionRequest, error) {
	var req domain.ConversionRequest

	if isFormBody(c) {
		req = formConversionRequest(c)
	} else if body := c.Body(); len(body) > 0 {
		var wire jsonConversionRequest
		if err := c.App().Config().JSONDecoder(body, &wire); err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req = wire.toDomain(c.App().Config().JSONDecoder)
	}

	if req.HTML == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, domain.ErrHTMLRequired.Error())
	}
	return req, nil
}

func isFormBody(c *fiber.Ctx) bool {
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))
	return strings.HasPrefix(ct, fiber.MIMEApplicationForm) || strings.HasPrefix(ct, fiber.MIMEMultipartForm)
}

// jsonConversionRequest keeps margin raw so a margin of the wrong JSON type
// degrades to "absent" instead of failing the whole body.
type jsonConversionRequest struct {
	HTML           string          `json:"html"`
	Margin         json.RawMessage `json:"margin"`
	HeaderTemplate string          `json:"headerTemplate"`
	FooterTemplate string          `json:"footerTemplate"`
}

func (w jsonConversionRequest) toDomain(decode func([]byte, interface{}) error) domain.ConversionRequest {
	req := domain.ConversionRequest{
		HTML:           w.HTML,
		HeaderTemplate: w.HeaderTemplate,
		FooterTemplate: w.FooterTemplate,
	}
	if len(w.Margin) > 0 {
		var m domain.MarginInput
		if err := decode(w.Margin, &m); err == nil {
			req.Margin = &m
		}
	}
	return req
}

var marginSides = []string{"top", "right", "bottom", "left"}

func formConversionRequest(c *fiber.Ctx) domain.ConversionRequest {
	req := domain.ConversionRequest{
		HTML:           c.FormValue("html"),
		HeaderTemplate: c.FormValue("headerTemplate"),
		FooterTemplate: c.FormValue("footerTemplate"),
	}

	var m domain.MarginInput
	found := false
	dst := map[string]*domain.MarginValue{
		"top":    &m.Top,
		"right":  &m.Right,
		"bottom": &m.Bottom,
		"left":   &m.Left,
	}
	for _, side := range marginSides {
		raw := c.FormValue("margin[" + side + "]")
		if raw == "" {
			raw = c.FormValue("margin." + side)
		}
		if raw == "" {
			continue
		}
		found = true
		*dst[side] = formMarginValue(raw)
	}
	if found {
		req.Margin = &m
	}
	return req
}

// formMarginValue treats numeric-looking form values as millimeters.
func formMarginValue(raw string) domain.MarginValue {
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !strings.ContainsAny(raw, "nNiI") {
		return domain.NumericMargin(f)
	}
	return domain.TextMargin(raw)
}

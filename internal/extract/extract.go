package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"rsc.io/pdf"
)

// ErrNoText means no readable text was obtained after every fallback.
var ErrNoText = errors.New("no text could be extracted from the document")

// Kind declares how the uploaded bytes should be interpreted.
type Kind int

const (
	KindPDF Kind = iota
	KindImage
)

// Document is an uploaded file, ephemeral: created on upload and discarded
// after extraction.
type Document struct {
	Data []byte
	Kind Kind
}

// DetectKind sniffs the payload. Anything that is not a PDF goes down the
// image/OCR path.
func DetectKind(data []byte) Kind {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return KindPDF
	}
	return KindImage
}

// Extractor produces plain text from documents: native PDF text layer
// first, OCR per page when a page has no text layer. OCR shells out to
// poppler's pdftoppm and tesseract.
type Extractor struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract returns the concatenated text of all pages in order, or ErrNoText
// when the document yields nothing after all fallbacks.
func (e *Extractor) Extract(doc Document) (string, error) {
	var text string
	switch doc.Kind {
	case KindPDF:
		text = e.extractPDF(doc.Data)
	case KindImage:
		text = e.ocrImageBytes(doc.Data, "img-*")
	default:
		return "", fmt.Errorf("unknown document kind %d", doc.Kind)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (e *Extractor) extractPDF(data []byte) string {
	pages, err := pageTexts(data)
	if err != nil {
		// no parseable text layer at all, render and OCR everything
		e.log.Warn().Err(err).Msg("pdf text layer unreadable, falling back to ocr")
		return e.ocrPDF(data, 0)
	}

	var b strings.Builder
	var pdfPath string
	defer func() {
		if pdfPath != "" {
			os.Remove(pdfPath)
		}
	}()
	for i, pageText := range pages {
		if strings.TrimSpace(pageText) != "" {
			b.WriteString(pageText)
			b.WriteString("\n")
			continue
		}
		e.log.Debug().Int("page", i+1).Msg("no text layer on page, running ocr")
		if pdfPath == "" {
			path, err := writeTemp(data, "report-*.pdf")
			if err != nil {
				e.log.Error().Err(err).Msg("temp file for ocr")
				continue
			}
			pdfPath = path
		}
		ocrText, err := e.ocrPDFPage(pdfPath, i+1)
		if err != nil {
			e.log.Warn().Err(err).Int("page", i+1).Msg("ocr failed")
			continue
		}
		b.WriteString(ocrText)
		b.WriteString("\n")
	}
	return b.String()
}

// pageTexts reads the native text layer of every page. rsc.io/pdf panics on
// some malformed files, so the whole walk runs under a recover.
func pageTexts(data []byte) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("pdf parse: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, flattenPage(page.Content()))
	}
	return texts, nil
}

// flattenPage joins the page's positioned text runs, starting a new line
// whenever the baseline moves.
func flattenPage(content pdf.Content) string {
	var b strings.Builder
	lastY := -1.0
	for _, t := range content.Text {
		if lastY >= 0 && t.Y != lastY {
			b.WriteString("\n")
		}
		b.WriteString(t.S)
		lastY = t.Y
	}
	return b.String()
}

// ocrPDF renders page (or all pages when page is 0) to PNG and OCRs the
// result.
func (e *Extractor) ocrPDF(data []byte, page int) string {
	pdfPath, err := writeTemp(data, "report-*.pdf")
	if err != nil {
		e.log.Error().Err(err).Msg("temp file for ocr")
		return ""
	}
	defer os.Remove(pdfPath)

	if page > 0 {
		text, err := e.ocrPDFPage(pdfPath, page)
		if err != nil {
			return ""
		}
		return text
	}

	text, err := e.ocrPDFRange(pdfPath, 0, 0)
	if err != nil {
		e.log.Warn().Err(err).Msg("full-document ocr failed")
		return ""
	}
	return text
}

func (e *Extractor) ocrPDFPage(pdfPath string, page int) (string, error) {
	return e.ocrPDFRange(pdfPath, page, page)
}

func (e *Extractor) ocrPDFRange(pdfPath string, first, last int) (string, error) {
	dir, err := os.MkdirTemp("", "ocr")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	outPrefix := filepath.Join(dir, "page")
	args := []string{"-png", "-r", "300"}
	if first > 0 {
		args = append(args, "-f", strconv.Itoa(first), "-l", strconv.Itoa(last))
	}
	args = append(args, pdfPath, outPrefix)
	if err := exec.Command("pdftoppm", args...).Run(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	images, err := filepath.Glob(outPrefix + "*.png")
	if err != nil || len(images) == 0 {
		return "", fmt.Errorf("pdftoppm produced no pages")
	}
	var b strings.Builder
	for _, img := range images {
		text, err := ocrImageFile(img)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (e *Extractor) ocrImageBytes(data []byte, pattern string) string {
	path, err := writeTemp(data, pattern)
	if err != nil {
		e.log.Error().Err(err).Msg("temp file for ocr")
		return ""
	}
	defer os.Remove(path)
	text, err := ocrImageFile(path)
	if err != nil {
		e.log.Warn().Err(err).Msg("image ocr failed")
		return ""
	}
	return text
}

func ocrImageFile(path string) (string, error) {
	out, err := exec.Command("tesseract", path, "stdout", "--psm", "6").Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

func writeTemp(data []byte, pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

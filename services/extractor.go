package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rag-document-platform/internal/logger"
	"rag-document-platform/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// UnsupportedFormatError reports a file extension no parser handles.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %q", e.Ext)
}

// CorruptDocumentError reports a file that has a supported extension but
// could not be parsed.
type CorruptDocumentError struct {
	Filename string
	Err      error
}

func (e *CorruptDocumentError) Error() string {
	return fmt.Sprintf("could not parse document %q: %v", e.Filename, e.Err)
}

func (e *CorruptDocumentError) Unwrap() error { return e.Err }

// ExtractedSection is a unit of extracted text plus parser-specific
// metadata (page number, sheet name) passed through to chunks unchanged.
type ExtractedSection struct {
	Text     string
	Metadata map[string]interface{}
}

// Extractor loads a document from disk and extracts its text, dispatching
// on the file extension.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtension reports whether Extract can handle files with ext.
func (e *Extractor) SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".html", ".htm", ".xlsx":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text sections in document
// order. filename is the upload's original name, used only for errors.
func (e *Extractor) Extract(path, filename string) ([]ExtractedSection, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return e.extractPDF(path, filename)
	case ".txt":
		return e.extractText(path, filename)
	case ".html", ".htm":
		return e.extractHTML(path, filename)
	case ".xlsx":
		return e.extractXLSX(path, filename)
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
}

// extractPDF extracts one section per page so page numbers survive into
// chunk metadata.
func (e *Extractor) extractPDF(path, filename string) ([]ExtractedSection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &CorruptDocumentError{Filename: filename, Err: err}
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &CorruptDocumentError{Filename: filename, Err: err}
	}

	var sections []ExtractedSection
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from PDF page", "filename", filename, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		sections = append(sections, ExtractedSection{
			Text:     text,
			Metadata: map[string]interface{}{models.MetaPage: i},
		})
	}

	if len(sections) == 0 {
		return nil, &CorruptDocumentError{Filename: filename, Err: fmt.Errorf("no extractable text in %d pages", pages)}
	}
	return sections, nil
}

func (e *Extractor) extractText(path, filename string) ([]ExtractedSection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &CorruptDocumentError{Filename: filename, Err: err}
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, &CorruptDocumentError{Filename: filename, Err: fmt.Errorf("file is empty")}
	}
	return []ExtractedSection{{Text: text, Metadata: map[string]interface{}{}}}, nil
}

func (e *Extractor) extractHTML(path, filename string) ([]ExtractedSection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &CorruptDocumentError{Filename: filename, Err: err}
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, &CorruptDocumentError{Filename: filename, Err: err}
	}

	doc.Find("script, style, noscript").Remove()

	var sb strings.Builder
	doc.Find("body").Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	})

	text := strings.TrimSpace(sb.String())
	if text == "" {
		// Fall back to the whole body for pages without semantic markup
		text = strings.TrimSpace(doc.Find("body").Text())
	}
	if text == "" {
		return nil, &CorruptDocumentError{Filename: filename, Err: fmt.Errorf("no text content in document")}
	}
	return []ExtractedSection{{Text: text, Metadata: map[string]interface{}{}}}, nil
}

// extractXLSX extracts one section per sheet, rows joined as lines and
// cells separated by tabs.
func (e *Extractor) extractXLSX(path, filename string) ([]ExtractedSection, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &CorruptDocumentError{Filename: filename, Err: err}
	}
	defer f.Close()

	var sections []ExtractedSection
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("Failed to read sheet", "filename", filename, "sheet", sheet, "error", err)
			continue
		}

		var sb strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		if sb.Len() == 0 {
			continue
		}

		sections = append(sections, ExtractedSection{
			Text:     sb.String(),
			Metadata: map[string]interface{}{"sheet": sheet},
		})
	}

	if len(sections) == 0 {
		return nil, &CorruptDocumentError{Filename: filename, Err: fmt.Errorf("no extractable rows")}
	}
	return sections, nil
}

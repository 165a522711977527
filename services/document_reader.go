package services

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"document-portal/models"
	"document-portal/utils"

	"github.com/ledongthuc/pdf"
)

// DocumentReader turns one file on disk into documents.
type DocumentReader interface {
	Read(ctx context.Context, path string) ([]models.Document, error)
}

var readers = map[string]DocumentReader{
	"pdf":  PDFReader{},
	"docx": DocxReader{},
	"txt":  TextReader{},
	"md":   TextReader{},
}

// SupportedExtensions lists the accepted extensions without the dot, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ReaderFor picks the reader for a file name by its extension, ignoring case.
func ReaderFor(name string) (DocumentReader, bool) {
	r, ok := readers[utils.FileExtension(name)]
	return r, ok
}

// ReadDocument reads path with the reader registered for its extension.
func ReadDocument(ctx context.Context, path string) ([]models.Document, error) {
	r, ok := ReaderFor(path)
	if !ok {
		return nil, fmt.Errorf("read %s: extension %q: %w", filepath.Base(path), utils.FileExtension(path), models.ErrUnsupportedInput)
	}
	return r.Read(ctx, path)
}

func statDocument(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, models.ErrDocumentNotFound)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("read %s: is a directory: %w", path, models.ErrDocumentNotFound)
	}
	return nil
}

// PDFReader yields one document per page that has text.
type PDFReader struct{}

func (PDFReader) Read(ctx context.Context, path string) (docs []models.Document, err error) {
	if err := statDocument(path); err != nil {
		return nil, err
	}

	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("read %s: %v: %w", path, r, models.ErrUnreadableDocument)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, models.ErrUnreadableDocument)
	}
	defer f.Close()

	name := filepath.Base(path)
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read %s page %d: %v: %w", path, i, err, models.ErrUnreadableDocument)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, models.Document{Text: text, File: name, Page: i, TotalPages: pages})
	}
	return docs, nil
}

// DocxReader extracts the paragraphs of word/document.xml.
type DocxReader struct{}

type docxBody struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (DocxReader) Read(ctx context.Context, path string) ([]models.Document, error) {
	if err := statDocument(path); err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, models.ErrUnreadableDocument)
	}
	defer zr.Close()

	var body []byte
	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("read %s: %v: %w", path, err, models.ErrUnreadableDocument)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %v: %w", path, err, models.ErrUnreadableDocument)
		}
		break
	}
	if body == nil {
		return nil, fmt.Errorf("read %s: no word/document.xml: %w", path, models.ErrUnreadableDocument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc docxBody
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, models.ErrUnreadableDocument)
	}

	var paragraphs []string
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []models.Document{{Text: strings.Join(paragraphs, "\n\n"), File: filepath.Base(path)}}, nil
}

// TextReader reads a UTF-8 text or markdown file as a single document.
type TextReader struct{}

func (TextReader) Read(ctx context.Context, path string) ([]models.Document, error) {
	if err := statDocument(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("read %s: not valid UTF-8: %w", path, models.ErrUnreadableDocument)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Document{{Text: string(data), File: filepath.Base(path)}}, nil
}

package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Loader extracts raw text from one document format.
type Loader interface {
	// Load reads the file at path and returns its plain-text content.
	Load(path string) (string, error)
}

// Registry maps file extensions to loaders. Dispatch is explicit: an
// extension outside the registry fails with ErrUnsupportedFormat instead of
// falling back to a guessed format.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry returns a registry with the supported formats registered:
// .txt, .pdf, .docx and .doc.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(".txt", TextLoader{})
	r.Register(".pdf", PDFLoader{})
	r.Register(".docx", WordLoader{})
	r.Register(".doc", WordLoader{})
	return r
}

// Register adds or replaces the loader for an extension (with leading dot,
// matched case-insensitively).
func (r *Registry) Register(ext string, loader Loader) {
	r.loaders[strings.ToLower(ext)] = loader
}

// Lookup returns the loader for the file's extension.
func (r *Registry) Lookup(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := r.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return loader, nil
}

// Extensions lists the registered extensions, for error messages and docs.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	return exts
}

// TextLoader reads plain-text files.
type TextLoader struct{}

func (TextLoader) Load(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	return string(content), nil
}

// PDFLoader extracts text from PDF files.
type PDFLoader struct{}

func (PDFLoader) Load(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// WordLoader extracts text from Word documents by reading
// word/document.xml out of the OOXML zip container. Legacy .doc files that
// are not zip containers are rejected.
type WordLoader struct{}

func (WordLoader) Load(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening word document (not an OOXML container?): %w", err)
	}
	defer func() { _ = reader.Close() }()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document.xml: %w", err)
		}
		return parseDocumentXML(content), nil
	}
	return "", fmt.Errorf("word document has no word/document.xml entry")
}

// documentXML mirrors the parts of word/document.xml we care about.
type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}
	return strings.TrimSpace(result.String())
}

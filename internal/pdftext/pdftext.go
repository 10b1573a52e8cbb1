// Package pdftext extracts plain text from PDF files. No single Go PDF
// reader handles the whole corpus of real-world papers, so extraction
// cascades through several readers and returns the first non-empty result.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	dslipakpdf "github.com/dslipak/pdf"
	ledongthucpdf "github.com/ledongthuc/pdf"
	rscpdf "rsc.io/pdf"
)

type extractor struct {
	name string
	fn   func(path string) (string, error)
}

var extractors = []extractor{
	{"ledongthuc", extractLedongthuc},
	{"dslipak", extractDslipak},
	{"rsc", extractRsc},
}

// Extract returns the plain text of the PDF at path. Each reader attempt
// runs under recover because these libraries panic on malformed xref
// tables. When every reader fails or yields empty text, the attempt
// errors are joined into the returned error.
func Extract(path string) (string, error) {
	var errs []error
	for _, ex := range extractors {
		text, err := tryExtract(ex.fn, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ex.name, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: empty text", ex.name))
	}
	return "", fmt.Errorf("pdftext: all extractors failed for %s: %w", filepath.Base(path), errors.Join(errs...))
}

func tryExtract(fn func(string) (string, error), path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return fn(path)
}

func extractLedongthuc(path string) (string, error) {
	f, r, err := ledongthucpdf.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDslipak(path string) (string, error) {
	r, err := dslipakpdf.Open(path)
	if err != nil {
		return "", err
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractRsc(path string) (string, error) {
	r, err := rscpdf.Open(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, text := range page.Content().Text {
			sb.WriteString(text.S)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

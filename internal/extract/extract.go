package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimePPT  = "application/vnd.ms-powerpoint"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// ErrLegacyFormat marks formats recognized by the validator but with no text
// extractor (binary .ppt). Callers degrade to metadata-only analysis.
var ErrLegacyFormat = errors.New("legacy format without text extraction")

// Text extracts plain text from an in-memory document payload.
// Libraries used: github.com/ledongthuc/pdf (PDF); PPTX slides are read
// straight out of the OOXML zip.
func Text(ctx context.Context, data []byte, mediaType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized := normalizeMediaType(mediaType, fileName, data)
	switch normalized {
	case mimePDF:
		return extractPDF(data)
	case mimePPTX:
		return extractPPTX(data)
	case mimePPT:
		return "", ErrLegacyFormat
	default:
		return "", fmt.Errorf("unsupported media type: %s", normalized)
	}
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractPPTX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty pptx data")
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}

	slides := make(map[int]*zip.File)
	var order []int
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		num, ok := slideNumber(name)
		if !ok {
			continue
		}
		if _, seen := slides[num]; !seen {
			order = append(order, num)
		}
		slides[num] = f
	}
	if len(slides) == 0 {
		return "", errors.New("no slides found in pptx")
	}
	sort.Ints(order)

	var buf strings.Builder
	for _, num := range order {
		rc, err := slides[num].Open()
		if err != nil {
			return "", err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		text := stripSlideXML(string(raw))
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		fmt.Fprintf(&buf, "[Slide %d]\n%s", num, text)
	}
	return strings.TrimSpace(buf.String()), nil
}

func slideNumber(name string) (int, bool) {
	const prefix = "ppt/slides/slide"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml")
	num, err := strconv.Atoi(digits)
	if err != nil || num <= 0 {
		return 0, false
	}
	return num, true
}

// stripSlideXML keeps character data and breaks lines at paragraph ends,
// matching how DrawingML nests runs inside a:p elements.
func stripSlideXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return strings.TrimSpace(raw)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				buf.WriteString(string(t))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "br":
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMediaType(mediaType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
	if clean != "application/zip" && clean != "" && clean != "application/octet-stream" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".ppt":
		return mimePPT
	case ".pptx":
		return mimePPTX
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "ppt/presentation.xml" {
			return mimePPTX
		}
	}
	return ""
}

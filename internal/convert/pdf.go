// Package convert wraps JPEG scans into single-page PDF documents before
// relay, for devices that push page images rather than assembled PDFs.
package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/mzyy94/scanrelay/internal/scan"
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// IsJPEG reports whether data looks like a JPEG payload.
func IsJPEG(data []byte) bool {
	return bytes.HasPrefix(data, jpegMagic)
}

// JPEGDocument rewrites a JPEG document into a PDF with a page sized to the
// image. Non-JPEG documents pass through unchanged.
func JPEGDocument(doc *scan.Document) (*scan.Document, error) {
	if !IsJPEG(doc.Data) {
		return doc, nil
	}
	pdfData, err := WrapJPEG(doc.Data)
	if err != nil {
		return nil, err
	}
	out := *doc
	out.Data = pdfData
	out.Name = strings.TrimSuffix(out.Name, ".jpg")
	out.Name = strings.TrimSuffix(out.Name, ".jpeg")
	out.Name = strings.TrimSuffix(out.Name, ".bin")
	out.Name += ".pdf"
	return &out, nil
}

// WrapJPEG embeds one JPEG image into a one-page PDF. The page is sized from
// the image dimensions using the JFIF density when present, 300dpi otherwise.
func WrapJPEG(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	dpi := detectJPEGDPI(data)
	if dpi <= 0 {
		dpi = 300
	}
	widthMM := float64(cfg.Width) / float64(dpi) * 25.4
	heightMM := float64(cfg.Height) / float64(dpi) * 25.4

	pdf := fpdf.New("P", "mm", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: widthMM, Ht: heightMM})
	pdf.RegisterImageOptionsReader("scan", fpdf.ImageOptions{ImageType: "JPEG"}, bytes.NewReader(data))
	pdf.ImageOptions("scan", 0, 0, widthMM, heightMM, false, fpdf.ImageOptions{}, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return out.Bytes(), nil
}

// detectJPEGDPI extracts the X density from a JFIF APP0 segment.
// Returns 0 if the density cannot be determined.
func detectJPEGDPI(data []byte) int {
	if len(data) < 18 || !IsJPEG(data) {
		return 0
	}
	// APP0 directly after SOI: FF E0 <len> "JFIF\0" <ver:2> <units:1> <x:2> <y:2>
	if data[2] != 0xFF || data[3] != 0xE0 {
		return 0
	}
	if !bytes.Equal(data[6:11], []byte("JFIF\x00")) {
		return 0
	}
	units := data[13]
	xDensity := int(binary.BigEndian.Uint16(data[14:16]))
	switch units {
	case 1: // dots per inch
		return xDensity
	case 2: // dots per cm
		return int(float64(xDensity) * 2.54)
	default:
		return 0
	}
}

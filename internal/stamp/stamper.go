package stamp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	dErrors "notary/pkg/domain-errors"
)

var pdfMagic = []byte("%PDF-")

const watermarkDesc = "fontname:Helvetica, points:10, fillcolor:#808080, opacity:0.6, rotation:0, position:bl, offset:24 24, scalefactor:1 abs"

var disableConfigDir sync.Once

// Stamper renders proofs. It holds no state; Stamp never modifies its input.
type Stamper struct{}

func New() *Stamper {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Stamper{}
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Stamp returns a PDF proof. PDF input gets the label watermarked onto every
// page; anything else is laid out on a new A4 page with the label below it.
func (s *Stamper) Stamp(content []byte, label Label) ([]byte, error) {
	if label.TransactionID == "" || label.Timestamp.IsZero() {
		return nil, dErrors.New(dErrors.CodeRenderError, "label requires a transaction id and timestamp")
	}
	if bytes.HasPrefix(content, pdfMagic) {
		return s.watermark(content, label)
	}
	return s.deed(content, label)
}

func (s *Stamper) watermark(content []byte, label Label) ([]byte, error) {
	conf := pdfConfig()
	pages, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderError, "unreadable PDF")
	}
	if pages == 0 {
		return nil, dErrors.New(dErrors.CodeRenderError, "PDF has no pages")
	}

	wm, err := api.TextWatermark(label.Text(), watermarkDesc, true, false, types.POINTS)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderError, "invalid watermark")
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(content), &out, nil, wm, conf); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderError, "failed to watermark PDF")
	}
	return out.Bytes(), nil
}

// deed draws the content on an A4 page with the seal in light grey beneath.
// Document dates are pinned to the label timestamp so output is reproducible.
func (s *Stamper) deed(content []byte, label Label) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(label.Timestamp)
	pdf.SetModificationDate(label.Timestamp)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)

	switch imgType, ok := imageType(content); {
	case ok:
		placeImage(pdf, content, imgType)
	case utf8.Valid(content):
		pdf.MultiCell(0, 5, tr(string(content)), "", "L", false)
	default:
		pdf.MultiCell(0, 5, binarySummary(content), "", "L", false)
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(160, 160, 160)
	pdf.MultiCell(0, 4, tr(label.Text()), "", "L", false)

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderError, "failed to render proof")
	}
	return out.Bytes(), nil
}

func imageType(content []byte) (string, bool) {
	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", false
	}
	switch format {
	case "png":
		return "PNG", true
	case "jpeg":
		return "JPG", true
	}
	return "", false
}

const (
	maxImageWidth  = 190.0
	maxImageHeight = 220.0
)

func placeImage(pdf *fpdf.Fpdf, content []byte, imgType string) {
	opts := fpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
	info := pdf.RegisterImageOptionsReader("content", opts, bytes.NewReader(content))
	if info == nil || pdf.Err() {
		return
	}
	w, h := info.Extent()
	if w > maxImageWidth {
		h = h * maxImageWidth / w
		w = maxImageWidth
	}
	if h > maxImageHeight {
		w = w * maxImageHeight / h
		h = maxImageHeight
	}
	pdf.ImageOptions("content", pdf.GetX(), pdf.GetY(), w, h, true, opts, 0, "")
}

func binarySummary(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("Binary content\nSize: %d bytes\nSHA-256: %s", len(content), hex.EncodeToString(sum[:]))
}

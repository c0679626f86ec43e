// Package brochure renders the product catalog as a printable PDF.
package brochure

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"PuertoComercio/internal/catalog"
)

const (
	defaultTitle = "PUERTO COMERCIO"
	imageWidthMM = 70
)

// ImageResolver maps a product image reference to a readable file.
type ImageResolver interface {
	Resolve(ref string) (path string, ok bool)
}

type Renderer struct {
	Title  string
	Images ImageResolver
	Log    *zap.Logger
	Now    func() time.Time
}

var prices = message.NewPrinter(language.Spanish)

// FormatPrice renders an integer price with Spanish digit grouping.
func FormatPrice(v int) string {
	return prices.Sprintf("$%d", v)
}

// Render writes a cover page followed by one section per product.
func (r *Renderer) Render(w io.Writer, products []catalog.Product) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	title := r.Title
	if title == "" {
		title = defaultTitle
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetCreator("puerto-comercio", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Página %d de {nb}", pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	r.cover(pdf, tr, title, now())

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr("Catálogo de Productos"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, p := range products {
		r.product(pdf, tr, p)
	}

	return pdf.Output(w)
}

func (r *Renderer) cover(pdf *fpdf.Fpdf, tr func(string) string, title string, at time.Time) {
	pdf.AddPage()
	_, pageH := pdf.GetPageSize()

	pdf.SetY(pageH / 3)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 14, tr(spaced(title)), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr("Catálogo generado: "+at.Format("02/01/2006")), "", 1, "C", false, 0, "")
}

func (r *Renderer) product(pdf *fpdf.Fpdf, tr func(string) string, p catalog.Product) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 7, tr(p.Nombre), "", "L", false)

	if meta := joinNonEmpty(" · ", p.Marca, p.Categoria); meta != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, tr(meta), "", "L", false)
	}

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	for _, t := range p.Precios {
		pdf.MultiCell(0, 6, tr(t.Cantidad+": "+FormatPrice(t.Precio)), "", "L", false)
	}

	if d := strings.TrimSpace(p.Descripcion); d != "" {
		pdf.Ln(1)
		pdf.MultiCell(0, 5, tr(d), "", "L", false)
	}

	if path, kind, ok := r.image(p.Imagen); ok {
		opts := fpdf.ImageOptions{ImageType: kind, ReadDpi: true}
		if r.register(pdf, path, opts) {
			pdf.Ln(2)
			pdf.ImageOptions(path, pdf.GetX(), pdf.GetY(), imageWidthMM, 0, true, opts, 0, "")
		}
	}

	pdf.Ln(8)
}

// image returns a path and fpdf image type for refs that point at a
// decodable JPEG, PNG or GIF. Anything else is skipped so one bad asset
// cannot fail the whole document; register covers what fpdf itself rejects.
func (r *Renderer) image(ref string) (string, string, bool) {
	if r.Images == nil || ref == "" {
		return "", "", false
	}
	path, ok := r.Images.Resolve(ref)
	if !ok {
		return "", "", false
	}

	f, err := os.Open(path)
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		if r.Log != nil {
			r.Log.Debug("skip image", zap.String("imagen", ref), zap.Error(err))
		}
		return "", "", false
	}

	switch format {
	case "jpeg":
		return path, "JPG", true
	case "png":
		return path, "PNG", true
	case "gif":
		return path, "GIF", true
	}
	return "", "", false
}

// register loads the image into the document ahead of placement. Images fpdf
// cannot embed, interlaced PNG among them, would otherwise
// leave a sticky error that fails Output, so the error is cleared and the
// image skipped.
func (r *Renderer) register(pdf *fpdf.Fpdf, path string, opts fpdf.ImageOptions) bool {
	pdf.RegisterImageOptions(path, opts)
	if pdf.Ok() {
		return true
	}
	if r.Log != nil {
		r.Log.Warn("skip image", zap.String("path", path), zap.Error(pdf.Error()))
	}
	pdf.ClearError()
	return false
}

func spaced(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.Join(strings.Split(w, ""), " ")
	}
	return strings.Join(words, "  ")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

package brochure

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"PuertoComercio/internal/catalog"
)

type dirImages string

func (d dirImages) Resolve(ref string) (string, bool) {
	p := filepath.Join(string(d), filepath.Base(ref))
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// writeInterlacedPNG stores a PNG whose header claims Adam7 interlacing. The
// header alone is enough for image.DecodeConfig to accept it.
func writeInterlacedPNG(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	// signature(8) | length(4) "IHDR"(4) data(13) crc(4); interlace is the last data byte
	const ihdrType, ihdrData = 12, 16
	raw[ihdrData+12] = 1
	binary.BigEndian.PutUint32(raw[ihdrData+13:], crc32.ChecksumIEEE(raw[ihdrType:ihdrData+13]))

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil || format != "png" {
		t.Fatalf("DecodeConfig = %q, %v", format, err)
	}
}

func fixedRenderer(images ImageResolver) *Renderer {
	return &Renderer{
		Images: images,
		Log:    zap.NewNop(),
		Now:    func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	products := []catalog.Product{
		{ID: 100, Nombre: "Café Tostado", Marca: "Sierra", Categoria: "Bebidas",
			Descripcion: "Grano entero, tueste medio.",
			Precios:     []catalog.PriceTier{{Cantidad: "250g", Precio: 12500}, {Cantidad: "1kg", Precio: 45000}}},
		{ID: 101, Nombre: "Té Verde", Marca: "Oriente", Categoria: "Bebidas"},
	}

	var buf bytes.Buffer
	if err := fixedRenderer(nil).Render(&buf, products); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestRender_EmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := fixedRenderer(nil).Render(&buf, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
}

func TestRender_EmbedsDecodableImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "foto.png"))
	if err := os.WriteFile(filepath.Join(dir, "roto.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := []catalog.Product{{ID: 100, Nombre: "Sin imagen", Marca: "M", Categoria: "C"}}
	withImage := []catalog.Product{
		{ID: 100, Nombre: "Sin imagen", Marca: "M", Categoria: "C", Imagen: "/uploads/foto.png"},
	}
	broken := []catalog.Product{
		{ID: 100, Nombre: "Sin imagen", Marca: "M", Categoria: "C", Imagen: "/uploads/roto.png"},
		{ID: 101, Nombre: "Ausente", Marca: "M", Categoria: "C", Imagen: "/uploads/nada.jpg"},
	}

	r := fixedRenderer(dirImages(dir))
	render := func(ps []catalog.Product) []byte {
		var buf bytes.Buffer
		if err := r.Render(&buf, ps); err != nil {
			t.Fatalf("Render: %v", err)
		}
		return buf.Bytes()
	}

	if got := render(withImage); !bytes.Contains(got, []byte("/Subtype /Image")) {
		t.Fatal("expected an embedded image object")
	}
	if got := render(base); bytes.Contains(got, []byte("/Subtype /Image")) {
		t.Fatal("unexpected image object without an imagen")
	}
	if got := render(broken); bytes.Contains(got, []byte("/Subtype /Image")) {
		t.Fatal("undecodable or missing images must be skipped")
	}
}

func TestRender_SkipsImagesThePDFWriterRejects(t *testing.T) {
	dir := t.TempDir()
	writeInterlacedPNG(t, filepath.Join(dir, "entrelazada.png"))
	writePNG(t, filepath.Join(dir, "normal.png"))

	products := []catalog.Product{
		{ID: 100, Nombre: "A", Marca: "M", Categoria: "C", Imagen: "/uploads/entrelazada.png"},
		{ID: 101, Nombre: "B", Marca: "M", Categoria: "C"},
		{ID: 102, Nombre: "C", Marca: "M", Categoria: "C", Imagen: "/uploads/normal.png"},
	}

	var buf bytes.Buffer
	if err := fixedRenderer(dirImages(dir)).Render(&buf, products); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
	if n := bytes.Count(out, []byte("/Subtype /Image")); n != 1 {
		t.Fatalf("image objects = %d, want only the plain PNG", n)
	}
}

func TestFormatPrice(t *testing.T) {
	got := FormatPrice(45000)
	if !strings.HasPrefix(got, "$") || !strings.Contains(got, "45") || !strings.HasSuffix(got, "000") {
		t.Fatalf("FormatPrice(45000) = %q", got)
	}
	if got := FormatPrice(0); got != "$0" {
		t.Fatalf("FormatPrice(0) = %q", got)
	}
}

func TestSpaced(t *testing.T) {
	if got := spaced("PUERTO COMERCIO"); got != "P U E R T O  C O M E R C I O" {
		t.Fatalf("spaced = %q", got)
	}
}

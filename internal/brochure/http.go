package brochure

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"PuertoComercio/internal/catalog"
	"PuertoComercio/pkg/kit"
)

const downloadName = "catalogo_puerto_comercio.pdf"

type Server struct {
	Store    catalog.Store
	Renderer *Renderer
	Log      *zap.Logger
}

func (s *Server) Handler() http.HandlerFunc { return s.download }

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.Snapshot(r.Context())
	if errors.Is(err, catalog.ErrNoCatalog) {
		kit.WriteError(w, r, http.StatusNotFound, "catalog data not found", nil)
		return
	}
	if err != nil {
		s.Log.Error("catalog snapshot failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	var buf bytes.Buffer
	if err := s.Renderer.Render(&buf, products); err != nil {
		s.Log.Error("render brochure failed", zap.Int("products", len(products)), zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

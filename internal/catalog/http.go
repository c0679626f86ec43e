package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PuertoComercio/pkg/kit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Store Store
	Log   *zap.Logger
	// Placeholder is stored as imagen when a payload omits it.
	Placeholder string
}

type listResp struct {
	OK        bool      `json:"ok"`
	Productos []Product `json:"productos"`
}

type productResp struct {
	OK       bool    `json:"ok"`
	Producto Product `json:"producto"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (s *Server) ListHandler() http.HandlerFunc   { return s.list }
func (s *Server) GetHandler() http.HandlerFunc    { return s.get }
func (s *Server) CreateHandler() http.HandlerFunc { return s.create }
func (s *Server) UpdateHandler() http.HandlerFunc { return s.update }
func (s *Server) DeleteHandler() http.HandlerFunc { return s.delete }

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.List(r.Context())
	if err != nil {
		s.serverError(w, r, "list products failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, listResp{OK: true, Productos: products})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, r, "get product failed", id, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, productResp{OK: true, Producto: p})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	p, err := s.Store.Create(r.Context(), in.Product(s.Placeholder))
	if err != nil {
		s.serverError(w, r, "create product failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, productResp{OK: true, Producto: p})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	p, err := s.Store.Update(r.Context(), id, in.Product(s.Placeholder))
	if err != nil {
		s.storeError(w, r, "update product failed", id, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, productResp{OK: true, Producto: p})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := s.Store.Delete(r.Context(), id); err != nil {
		s.storeError(w, r, "delete product failed", id, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, okResp{OK: true})
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var in ProductInput
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&in); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return ProductInput{}, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": "extra data after json object"})
		return ProductInput{}, false
	}

	if errs := in.Validate(); len(errs) > 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product", errs)
		return ProductInput{}, false
	}
	return in, true
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, msg string, id int, err error) {
	if errors.Is(err, ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"id": id})
		return
	}
	s.serverError(w, r, msg, err)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err))
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}

package upload

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PuertoComercio/pkg/kit"
)

const (
	formField = "file"
	// DefaultMaxBytes bounds a single upload request.
	DefaultMaxBytes = 10 << 20
)

type Server struct {
	Sink     *Sink
	Log      *zap.Logger
	MaxBytes int64
}

type uploadResp struct {
	OK   bool   `json:"ok"`
	Ruta string `json:"ruta"`
}

func (s *Server) UploadHandler() http.HandlerFunc { return s.upload }
func (s *Server) ServeHandler() http.HandlerFunc  { return s.serve }

// upload streams the "file" part of a multipart body straight into the sink.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "multipart body required", map[string]any{"cause": err.Error()})
		return
	}

	part, err := findPart(mr, formField)
	if err != nil {
		s.writeBodyError(w, r, err)
		return
	}
	defer func() { _ = part.Close() }()

	ref, err := s.Sink.Store(r.Context(), part, part.FileName())
	if err != nil {
		s.writeBodyError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, uploadResp{OK: true, Ruta: ref})
}

var errNoFile = errors.New(`multipart field "file" missing`)

func findPart(mr *multipart.Reader, field string) (*multipart.Part, error) {
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			return nil, err
		}
		if p.FormName() == field {
			return p, nil
		}
		_ = p.Close()
	}
}

func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "file too large", map[string]any{"max_bytes": tooBig.Limit})
	case errors.Is(err, errNoFile):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, multipart.ErrMessageTooLarge):
		kit.WriteError(w, r, http.StatusBadRequest, "malformed multipart body", nil)
	default:
		s.Log.Error("store upload", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, info, err := s.Sink.Open(name)
	if errors.Is(err, ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, "asset not found", map[string]any{"filename": name})
		return
	}
	if err != nil {
		s.Log.Error("open asset", zap.Error(err), zap.String("filename", name))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	defer func() { _ = f.Close() }()

	mt, err := mimetype.DetectReader(f)
	if err == nil {
		w.Header().Set("Content-Type", mt.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.Log.Error("rewind asset", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

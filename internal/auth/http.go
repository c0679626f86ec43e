package auth

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"PuertoComercio/pkg/kit"
)

const (
	maxBodyBytes    = 1 << 20
	maxFormMemBytes = 64 << 10
)

type Server struct {
	Log     *zap.Logger
	Service *Service
}

func (s *Server) LoginHandler() http.HandlerFunc  { return s.handleLogin }
func (s *Server) WhoAmIHandler() http.HandlerFunc { return s.handleWhoAmI }

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// handleLogin accepts OAuth2 password-style form fields or the same two
// fields as a JSON object.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeLogin(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad request", map[string]any{"cause": err.Error()})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "username/password required", nil)
		return
	}

	tok, err := s.Service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		s.Log.Info("login failed", zap.String("username", req.Username))
		kit.WriteUnauthorized(w, r, "invalid credentials")
		return
	}
	if err != nil {
		s.Log.Error("login", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, loginResp{
		AccessToken: tok,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.Service.TTL / time.Second),
	})
}

func decodeLogin(r *http.Request) (loginReq, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch ct {
	case "application/json":
		var req loginReq
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return loginReq{}, err
		}
		return req, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemBytes); err != nil {
			return loginReq{}, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return loginReq{}, err
		}
	}
	return loginReq{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}, nil
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		kit.WriteUnauthorized(w, r, "missing token")
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"username":   id.Username,
		"expires_at": id.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

var (
	baseURL   = getenv("E2E_BASE_URL", "http://localhost:8000")
	adminUser = getenv("E2E_ADMIN_USERNAME", "admin")
	adminPass = getenv("E2E_ADMIN_PASSWORD", "admin123")
)

type product struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
	Imagen string `json:"imagen"`
}

func TestSystem_E2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	token := login(t)

	ruta := uploadImage(t, token, "e2e.png", []byte("\x89PNG\r\n\x1a\ne2e"))
	if !strings.HasPrefix(ruta, "/uploads/") {
		t.Fatalf("unexpected ruta %q", ruta)
	}

	name := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	var created struct {
		Producto product `json:"producto"`
	}
	doJSONAuth(t, http.MethodPost, baseURL+"/productos", token, map[string]any{
		"nombre":      name,
		"descripcion": "alta desde e2e",
		"categoria":   "Pruebas",
		"marca":       "E2E",
		"imagen":      ruta,
		"precios":     []map[string]any{{"cantidad": "1 unidad", "precio": 1000}},
	}, &created, http.StatusCreated)
	if created.Producto.ID < 100 {
		t.Fatalf("unexpected id %d", created.Producto.ID)
	}
	productURL := fmt.Sprintf("%s/productos/%d", baseURL, created.Producto.ID)

	doJSONAuth(t, http.MethodPost, baseURL+"/productos", "", map[string]any{"nombre": "x"}, nil, http.StatusUnauthorized)

	expectPDF(t)

	if os.Getenv("E2E_RESTART_API") == "1" {
		restartService(t, ctx, getenv("E2E_API_SERVICE", "api"))
		waitReady(t, ctx, baseURL+"/readyz")

		var got struct {
			Producto product `json:"producto"`
		}
		doJSON(t, http.MethodGet, productURL, nil, &got, http.StatusOK)
		if got.Producto.Nombre != name || got.Producto.Imagen != ruta {
			t.Fatalf("product after restart = %+v", got.Producto)
		}
		// Tokens are stateless, so the one issued before the restart still works.
	}

	doJSONAuth(t, http.MethodDelete, productURL, token, nil, nil, http.StatusOK)
	doJSON(t, http.MethodGet, productURL, nil, nil, http.StatusNotFound)
}

func login(t *testing.T) string {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.PostForm(baseURL+"/auth/login", url.Values{
		"username": {adminUser},
		"password": {adminPass},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatalf("empty access_token")
	}
	return out.AccessToken
}

func uploadImage(t *testing.T, token, filename string, data []byte) string {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/upload-image", &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		Ruta string `json:"ruta"`
	}
	send(t, req, &out, http.StatusOK)
	return out.Ruta
}

func expectPDF(t *testing.T) {
	t.Helper()

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(baseURL + "/catalogo-pdf")
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	defer resp.Body.Close()

	head := make([]byte, 5)
	if _, err := io.ReadFull(resp.Body, head); err != nil || resp.StatusCode != http.StatusOK || string(head) != "%PDF-" {
		t.Fatalf("pdf status=%d head=%q err=%v", resp.StatusCode, head, err)
	}
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()
	doJSONAuth(t, method, url, "", body, out, want)
}

func doJSONAuth(t *testing.T, method, url, token string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	send(t, req, out, want)
}

func send(t *testing.T, req *http.Request, out any, want int) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status=%d want=%d body=%s", req.Method, req.URL, resp.StatusCode, want, b)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matsen/refextract/internal/document"
)

func TestGet(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/paper.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 body"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>References</body></html>"))
		case "/sniffed":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("\n%PDF-1.7 body"))
		case "/gone":
			w.WriteHeader(http.StatusGone)
		case "/slow-down":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(WithRate(0), WithUserAgent("test-agent"))

	tests := []struct {
		path     string
		wantKind document.Kind
		wantErr  error
	}{
		{"/paper.pdf", document.KindPDF, nil},
		{"/page", document.KindHTML, nil},
		{"/sniffed", document.KindPDF, nil},
		{"/gone", "", ErrNotFound},
		{"/slow-down", "", ErrRateLimited},
		{"/broken", "", ErrHTTP},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			page, err := client.Get(context.Background(), server.URL+tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
				}
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode < 400 {
					t.Errorf("error %v should carry the status", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if page.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", page.Kind, tt.wantKind)
			}
			if page.URL != server.URL+tt.path || len(page.Body) == 0 {
				t.Errorf("page = %+v", page)
			}
			if gotUA != "test-agent" {
				t.Errorf("User-Agent = %q, want test-agent", gotUA)
			}
		})
	}
}

func TestGet_BodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	if _, err := NewClient(WithRate(0), WithMaxBodySize(50)).Get(context.Background(), server.URL); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Get() error = %v, want ErrTooLarge", err)
	}
	if _, err := NewClient(WithRate(0), WithMaxBodySize(100)).Get(context.Background(), server.URL); err != nil {
		t.Errorf("body at the cap should be accepted, got %v", err)
	}
}

func TestGet_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, err := NewClient(WithRate(0)).Get(context.Background(), url); !errors.Is(err, ErrNetworkError) {
		t.Errorf("Get() error = %v, want ErrNetworkError", err)
	}
}

func TestGet_RateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>ok</p>"))
	}))
	defer server.Close()

	client := NewClient(WithRate(0.01))
	if _, err := client.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("first Get() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.Get(ctx, server.URL); err == nil {
		t.Error("second Get() should fail while waiting for the limiter")
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
		want        document.Kind
	}{
		{"application/pdf", "", document.KindPDF},
		{"Application/PDF; qs=1", "", document.KindPDF},
		{"", "%PDF-1.5", document.KindPDF},
		{"text/html", "<html>", document.KindHTML},
		{"", "plain text", document.KindHTML},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.contentType, []byte(tt.body)); got != tt.want {
			t.Errorf("DetectKind(%q, %q) = %s, want %s", tt.contentType, tt.body, got, tt.want)
		}
	}
}

func TestIsURL(t *testing.T) {
	for s, want := range map[string]bool{
		"https://example.org/a.pdf": true,
		"HTTP://EXAMPLE.ORG":        true,
		"paper.pdf":                 false,
		"/tmp/https.html":           false,
	} {
		if got := IsURL(s); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", s, got, want)
		}
	}
}

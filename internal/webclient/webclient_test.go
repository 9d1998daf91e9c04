package webclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phishdetect/internal/webclient"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"172.16.5.4", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"100.64.0.1", true},
		{"169.254.1.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		if got := webclient.IsPrivateIP(tt.ip); got != tt.want {
			t.Errorf("IsPrivateIP(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestGetTracedRecordsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	hop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/landing", http.StatusFound)
	}))
	defer hop.Close()

	client := webclient.New(webclient.WithTimeout(5 * time.Second))

	resp, trace, err := client.GetTraced(context.Background(), hop.URL)
	if err != nil {
		t.Fatalf("GetTraced failed: %v", err)
	}
	resp.Body.Close()

	if len(trace.RedirectURLs) != 1 {
		t.Fatalf("expected 1 redirect hop, got %d", len(trace.RedirectURLs))
	}
	if trace.FinalURL != final.URL+"/landing" {
		t.Errorf("final URL = %q", trace.FinalURL)
	}
}

func TestGetTracedStopsAtMaxRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	client := webclient.New(webclient.WithTimeout(5*time.Second), webclient.WithMaxRedirects(3))

	resp, trace, err := client.GetTraced(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetTraced failed: %v", err)
	}
	resp.Body.Close()

	if len(trace.RedirectURLs) > 3 {
		t.Errorf("expected at most 3 recorded hops, got %d", len(trace.RedirectURLs))
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected last redirect response to be returned, got %d", resp.StatusCode)
	}
}

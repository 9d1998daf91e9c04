package intel_test

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phishdetect/internal/intel"
	"phishdetect/internal/telemetry"
	"phishdetect/internal/webclient"
)

type stubSource struct {
	name      string
	malicious bool
	err       error
	calls     int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Check(ctx context.Context, url string) (intel.SourceResult, error) {
	s.calls++
	if s.err != nil {
		return intel.SourceResult{}, s.err
	}
	return intel.SourceResult{IsMalicious: s.malicious}, nil
}

func TestCheckAllAggregation(t *testing.T) {
	a := &stubSource{name: "A", malicious: true}
	b := &stubSource{name: "B", malicious: false}
	c := &stubSource{name: "C", malicious: true}

	checker := intel.NewChecker(time.Minute, telemetry.NewRegistry(), a, b, c)
	result := checker.CheckAll(context.Background(), "http://evil.example.com")

	if !result.IsMalicious {
		t.Fatal("expected malicious aggregate")
	}
	if len(result.Sources) != 2 || result.Sources[0] != "A" || result.Sources[1] != "C" {
		t.Errorf("sources = %v, want [A C]", result.Sources)
	}
	if math.Abs(result.Score-0.8) > 1e-9 {
		t.Errorf("score = %v, want 0.8", result.Score)
	}
}

func TestCheckAllScoreCapped(t *testing.T) {
	sources := make([]intel.Source, 0, 4)
	for i := 0; i < 4; i++ {
		sources = append(sources, &stubSource{name: fmt.Sprintf("S%d", i), malicious: true})
	}

	checker := intel.NewChecker(time.Minute, nil, sources...)
	result := checker.CheckAll(context.Background(), "http://evil.example.com")

	if result.Score != 1.0 {
		t.Errorf("score = %v, want capped 1.0", result.Score)
	}
}

func TestCheckAllCleanURL(t *testing.T) {
	checker := intel.NewChecker(time.Minute, nil, &stubSource{name: "A"})
	result := checker.CheckAll(context.Background(), "https://www.google.com")

	if result.IsMalicious || result.Score != 0 || len(result.Sources) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestSourceFailureDoesNotBlockOthers(t *testing.T) {
	failing := &stubSource{name: "Broken", err: fmt.Errorf("connection refused")}
	working := &stubSource{name: "Working", malicious: true}

	checker := intel.NewChecker(time.Minute, telemetry.NewRegistry(), failing, working)
	result := checker.CheckAll(context.Background(), "http://evil.example.com")

	if !result.IsMalicious {
		t.Fatal("expected working source to still match")
	}
	if len(result.Sources) != 1 || result.Sources[0] != "Working" {
		t.Errorf("sources = %v", result.Sources)
	}
}

func TestResultsAreCached(t *testing.T) {
	src := &stubSource{name: "A", malicious: true}
	checker := intel.NewChecker(time.Minute, nil, src)

	checker.CheckAll(context.Background(), "http://evil.example.com")
	checker.CheckAll(context.Background(), "http://evil.example.com")

	if src.calls != 1 {
		t.Errorf("expected 1 source call with warm cache, got %d", src.calls)
	}
}

func TestExpiredCacheEntryRefetches(t *testing.T) {
	src := &stubSource{name: "A", malicious: true}
	checker := intel.NewChecker(10*time.Millisecond, nil, src)

	checker.CheckAll(context.Background(), "http://evil.example.com")
	time.Sleep(25 * time.Millisecond)
	checker.CheckAll(context.Background(), "http://evil.example.com")

	if src.calls != 2 {
		t.Errorf("expected 2 source calls across TTL expiry, got %d", src.calls)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	src := &stubSource{name: "A", err: fmt.Errorf("boom")}
	checker := intel.NewChecker(time.Minute, nil, src)

	checker.CheckAll(context.Background(), "http://evil.example.com")
	checker.CheckAll(context.Background(), "http://evil.example.com")

	if src.calls != 2 {
		t.Errorf("expected failed lookups to retry, got %d calls", src.calls)
	}
}

func TestURLHausSourceParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("url") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"query_status":"ok","threat":"malware_download","tags":["elf"]}`)
	}))
	defer srv.Close()

	client := webclient.New(webclient.WithTimeout(5 * time.Second))
	src := intel.NewURLHausSourceAt(client, srv.URL)

	sr, err := src.Check(context.Background(), "http://evil.example.com/payload")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !sr.IsMalicious {
		t.Error("expected malicious result")
	}
	if sr.Detail["threat_type"] != "malware_download" {
		t.Errorf("detail = %v", sr.Detail)
	}
}

func TestOpenPhishSourceMatchesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "http://phish.example.com/login\nhttp://other.example.net/\n")
	}))
	defer srv.Close()

	client := webclient.New(webclient.WithTimeout(5 * time.Second))
	src := intel.NewOpenPhishSourceAt(client, srv.URL)

	sr, err := src.Check(context.Background(), "http://phish.example.com/login")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !sr.IsMalicious {
		t.Error("expected feed URL to match")
	}

	sr, err = src.Check(context.Background(), "http://other.example.net")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !sr.IsMalicious {
		t.Error("expected trailing-slash-normalized match")
	}

	sr, err = src.Check(context.Background(), "https://www.google.com")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if sr.IsMalicious {
		t.Error("expected clean URL not to match")
	}
}

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gsekeres/marginalia/internal/gateway"
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/vault"
)

const pdfBody = "%PDF-1.4 test document"

// stubAdapter returns a fixed attempt and counts calls.
type stubAdapter struct {
	name  string
	att   Attempt
	calls int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Resolve(ctx context.Context, p *paper.Paper) Attempt {
	s.calls++
	att := s.att
	att.Source = s.name
	return att
}

func testVault(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := vault.Init(root); err != nil {
		t.Fatal(err)
	}
	return root
}

func pdfServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(pdfBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAcquireStopsAtFirstSuccess(t *testing.T) {
	srv := pdfServer(t)
	root := testVault(t)

	first := &stubAdapter{name: "a", att: Attempt{FailureReason: "nothing"}}
	second := &stubAdapter{name: "b", att: Attempt{OK: true, URL: srv.URL + "/paper.pdf"}}
	third := &stubAdapter{name: "c", att: Attempt{OK: true, URL: srv.URL + "/other.pdf"}}

	f := NewFinder(gateway.New(), root, WithAdapters(first, second, third))

	p := paper.New("smith2020", "A Paper")
	res, err := f.Acquire(context.Background(), p)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if !res.OK || res.Source != "b" {
		t.Errorf("result = %+v, want success from b", res)
	}
	if third.calls != 0 {
		t.Error("later adapter was called after a success")
	}

	data, err := os.ReadFile(res.PDFPath)
	if err != nil {
		t.Fatalf("reading landed PDF: %v", err)
	}
	if string(data) != pdfBody {
		t.Errorf("landed PDF content = %q", data)
	}
	if res.PDFPath != vault.PDFPath(root, "smith2020") {
		t.Errorf("PDF path = %q", res.PDFPath)
	}
}

func TestAcquireRejectsLoginPageAndContinues(t *testing.T) {
	loginSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!DOCTYPE html><html>please sign in</html>"))
	}))
	defer loginSrv.Close()
	pdfSrv := pdfServer(t)
	root := testVault(t)

	paywalled := &stubAdapter{name: "paywalled", att: Attempt{OK: true, URL: loginSrv.URL}}
	good := &stubAdapter{name: "good", att: Attempt{OK: true, URL: pdfSrv.URL}}

	f := NewFinder(gateway.New(), root, WithAdapters(paywalled, good))

	res, err := f.Acquire(context.Background(), paper.New("doe2021", "Another Paper"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Source != "good" {
		t.Fatalf("result = %+v, want success from good", res)
	}

	// The paywalled attempt must be recorded as a failure.
	if len(res.Attempts) != 2 || res.Attempts[0].OK {
		t.Errorf("attempts = %+v", res.Attempts)
	}
	if !strings.Contains(res.Attempts[0].FailureReason, "login") {
		t.Errorf("failure reason = %q", res.Attempts[0].FailureReason)
	}
}

func TestAcquireTotalFailureReturnsManualLinks(t *testing.T) {
	root := testVault(t)

	a := &stubAdapter{name: "a", att: Attempt{FailureReason: "no"}}
	b := &stubAdapter{name: "b", att: Attempt{FailureReason: "still no"}}
	f := NewFinder(gateway.New(), root, WithAdapters(a, b))

	p := paper.New("smith2020", "Market Design")
	p.DOI = "10.1000/xyz"
	p.Authors = []string{"John Smith"}

	res, err := f.Acquire(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK {
		t.Fatal("Acquire() succeeded with all adapters failing")
	}
	if res.FailureReason == "" {
		t.Error("missing failure reason")
	}
	if len(res.Attempts) != 2 {
		t.Errorf("attempts = %+v", res.Attempts)
	}

	links := res.ManualLinks
	if len(links) != 5 {
		t.Fatalf("manual links = %v", links)
	}
	wantPrefixes := []string{
		"https://scholar.google.com/scholar?q=",
		"https://www.semanticscholar.org/search?q=",
		"https://doi.org/10.1000/xyz",
		"https://papers.ssrn.com/sol3/results.cfm?txtKey_Words=",
		"https://scholar.google.com/scholar?q=",
	}
	for i, want := range wantPrefixes {
		if !strings.HasPrefix(links[i], want) {
			t.Errorf("link %d = %q, want prefix %q", i, links[i], want)
		}
	}
}

func TestAcquireManualLinksWithoutDOI(t *testing.T) {
	root := testVault(t)
	f := NewFinder(gateway.New(), root,
		WithAdapters(&stubAdapter{name: "a", att: Attempt{FailureReason: "no"}}))

	res, err := f.Acquire(context.Background(), paper.New("anon2020", "Untitled Work"))
	if err != nil {
		t.Fatal(err)
	}
	for _, link := range res.ManualLinks {
		if strings.HasPrefix(link, "https://doi.org/") {
			t.Errorf("DOI link present without a DOI: %q", link)
		}
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	root := testVault(t)

	ctx, cancel := context.WithCancel(context.Background())
	first := &stubAdapter{name: "a", att: Attempt{FailureReason: "no"}}
	blocked := &stubAdapter{name: "b", att: Attempt{FailureReason: "unreached"}}

	// Cancel after the first adapter reports.
	cancelling := adapterFunc(func(c context.Context, p *paper.Paper) Attempt {
		cancel()
		return Attempt{Source: "canceller", FailureReason: "no"}
	})

	f := NewFinder(gateway.New(), root, WithAdapters(first, cancelling, blocked))

	_, err := f.Acquire(ctx, paper.New("x2020", "X"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}
	if blocked.calls != 0 {
		t.Error("adapter ran after cancellation")
	}
}

// adapterFunc adapts a function to the Adapter interface.
type adapterFunc func(ctx context.Context, p *paper.Paper) Attempt

func (f adapterFunc) Name() string { return "func" }

func (f adapterFunc) Resolve(ctx context.Context, p *paper.Paper) Attempt { return f(ctx, p) }

func TestInboxAdapter(t *testing.T) {
	root := testVault(t)

	inboxFile := filepath.Join(vault.InboxPath(root), "smith2020.pdf")
	if err := os.WriteFile(inboxFile, []byte(pdfBody), 0644); err != nil {
		t.Fatal(err)
	}

	in := NewInbox(root)
	att := in.Resolve(context.Background(), paper.New("smith2020", "A Paper"))
	if !att.OK || att.LocalPath != inboxFile {
		t.Fatalf("Resolve() = %+v", att)
	}

	miss := in.Resolve(context.Background(), paper.New("other2020", "Other"))
	if miss.OK {
		t.Errorf("Resolve() = %+v for missing file", miss)
	}

	// Acquire through the finder copies the inbox file into papers/.
	f := NewFinder(gateway.New(), root, WithAdapters(in))
	res, err := f.Acquire(context.Background(), paper.New("smith2020", "A Paper"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Source != "inbox" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(vault.PDFPath(root, "smith2020")); err != nil {
		t.Errorf("landed PDF missing: %v", err)
	}
}

func TestInboxRejectsNonPDF(t *testing.T) {
	root := testVault(t)

	inboxFile := filepath.Join(vault.InboxPath(root), "bad2020.pdf")
	if err := os.WriteFile(inboxFile, []byte("<html>not a pdf</html>"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFinder(gateway.New(), root, WithAdapters(NewInbox(root)))
	res, err := f.Acquire(context.Background(), paper.New("bad2020", "Bad"))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK {
		t.Fatal("Acquire() accepted a non-PDF inbox file")
	}
}

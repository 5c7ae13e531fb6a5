package web

import "testing"

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	in := "Title\n\n\n\nBody   text  here\t\tmore"
	got := cleanText(in)
	want := "Title\n\nBody text here more"
	if got != want {
		t.Fatalf("cleanText(%q) = %q, want %q", in, got, want)
	}
}

func TestBaseOriginExtractsSchemeAndHost(t *testing.T) {
	cases := map[string]string{
		"https://example.com/a/b?q=1": "https://example.com",
		"http://sub.example.com":      "http://sub.example.com",
		"not a url at all":            "",
	}
	for in, want := range cases {
		if got := baseOrigin(in); got != want {
			t.Errorf("baseOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewScraperDefaults(t *testing.T) {
	s := NewScraper(0, 200, false)
	if s.minTextForHTTPOnly != 200 {
		t.Fatalf("expected minTextForHTTPOnly=200, got %d", s.minTextForHTTPOnly)
	}
	if s.headlessEnabled {
		t.Fatalf("expected headlessEnabled=false")
	}
}

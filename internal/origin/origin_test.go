package origin

import "testing"

func TestNormalizeHeader(t *testing.T) {
	t.Run("normalizes scheme, host and default port", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("HTTPS://Example.COM:443")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "https://example.com" {
			t.Fatalf("normalized=%q, want %q", normalized, "https://example.com")
		}
		if host != "example.com" {
			t.Fatalf("host=%q, want %q", host, "example.com")
		}
	})

	t.Run("keeps non-default port and trailing slash", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("http://localhost:5173/")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "http://localhost:5173" {
			t.Fatalf("normalized=%q, want %q", normalized, "http://localhost:5173")
		}
		if host != "localhost:5173" {
			t.Fatalf("host=%q, want %q", host, "localhost:5173")
		}
	})

	t.Run("ipv6 literal", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("http://[::1]:8080")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "http://[::1]:8080" || host != "[::1]:8080" {
			t.Fatalf("normalized=%q host=%q", normalized, host)
		}
	})

	t.Run("allows null origin", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("null")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "null" || host != "" {
			t.Fatalf("normalized=%q host=%q, want normalized=%q host=%q", normalized, host, "null", "")
		}
	})

	t.Run("rejects", func(t *testing.T) {
		cases := []string{
			"",
			"ftp://example.com",
			"https://example.com/path",
			"https://example.com/?q=1",
			"https://user@example.com",
			"https://example.com/#frag",
			"https://example.com:0",
			"https://example.com:70000",
			"https://example.com:",
			"example.com",
		}
		for _, c := range cases {
			if _, _, ok := NormalizeHeader(c); ok {
				t.Fatalf("expected ok=false for %q", c)
			}
		}
	})
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		reqHost string
		allowed []string
		want    bool
	}{
		{name: "same host", origin: "http://localhost:5000", reqHost: "localhost:5000", want: true},
		{name: "same host behind tls", origin: "https://skywatch.example", reqHost: "skywatch.example", want: true},
		{name: "different port", origin: "http://localhost:5173", reqHost: "localhost:5000", want: false},
		{name: "null never same host", origin: "null", reqHost: "localhost", want: false},
		{name: "explicit allow list", origin: "http://localhost:5173", reqHost: "localhost:5000", allowed: []string{"http://localhost:5173"}, want: true},
		{name: "allow list miss", origin: "http://evil.example", reqHost: "localhost:5000", allowed: []string{"http://localhost:5173"}, want: false},
		{name: "wildcard", origin: "http://evil.example", reqHost: "localhost:5000", allowed: []string{"*"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, host, ok := NormalizeHeader(tt.origin)
			if !ok {
				t.Fatalf("NormalizeHeader(%q) failed", tt.origin)
			}
			if got := IsAllowed(normalized, host, tt.reqHost, tt.allowed); got != tt.want {
				t.Fatalf("IsAllowed=%v, want %v", got, tt.want)
			}
		})
	}
}

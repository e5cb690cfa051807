package knowledge

import "testing"

func TestNormalizeURLStripsTrackingAndFragment(t *testing.T) {
	got, err := normalizeURL("https://example.com/post/?utm_source=newsletter&ref=abc&id=5#section-2")
	if err != nil {
		t.Fatalf("normalizeURL: %v", err)
	}
	if got != "https://example.com/post?id=5" {
		t.Errorf("unexpected normalized url: %q", got)
	}
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	first, err := normalizeURL("https://example.com/docs/guide/")
	if err != nil {
		t.Fatalf("normalizeURL: %v", err)
	}
	second, err := normalizeURL(first)
	if err != nil {
		t.Fatalf("normalizeURL (second pass): %v", err)
	}
	if first != second {
		t.Errorf("expected normalization to be idempotent, got %q then %q", first, second)
	}
}

func TestNormalizeURLRootPath(t *testing.T) {
	got, err := normalizeURL("https://example.com")
	if err != nil {
		t.Fatalf("normalizeURL: %v", err)
	}
	if got != "https://example.com/" {
		t.Errorf("expected root path normalized to '/', got %q", got)
	}
}

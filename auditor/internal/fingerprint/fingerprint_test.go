package fingerprint

import (
	"strings"
	"testing"
)

const page = `<!DOCTYPE html>
<html lang="en">
<head><title>Shop</title></head>
<body>
  <main id="content">
    <h1>Products</h1>
    <button class="buy">Buy</button>
  </main>
</body>
</html>`

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(page)
	b := Compute(page)
	if a != b {
		t.Fatalf("same input, different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestCompute_IgnoresVolatileContent(t *testing.T) {
	variants := map[string]string{
		"script":     strings.Replace(page, "<h1>", `<script>var t = Date.now();</script><h1>`, 1),
		"style":      strings.Replace(page, "<title>Shop</title>", `<title>Shop</title><style>.x{color:red}</style>`, 1),
		"iframe":     strings.Replace(page, "</main>", `<iframe src="https://ads.example/1"><p>ad</p></iframe></main>`, 1),
		"noscript":   strings.Replace(page, "</main>", `<noscript>enable js</noscript></main>`, 1),
		"comment":    strings.Replace(page, "<h1>", `<!-- rendered at 12:00 --><h1>`, 1),
		"data-attr":  strings.Replace(page, `class="buy"`, `class="buy" data-session="abc123def456ghi789jkl0"`, 1),
		"session-id": strings.Replace(page, `<h1>`, `<h1 id="a1B2c3D4e5F6g7H8i9J0k1">`, 1),
		"whitespace": strings.ReplaceAll(page, "\n  ", "\n\n\t    "),
	}

	want := Compute(page)
	for name, v := range variants {
		if got := Compute(v); got != want {
			t.Errorf("%s: hash changed\nnormalized: %s", name, Normalize(v))
		}
	}
}

func TestCompute_SensitiveToStructure(t *testing.T) {
	variants := map[string]string{
		"new element":  strings.Replace(page, "</main>", `<p>Sale</p></main>`, 1),
		"text change":  strings.Replace(page, "Products", "Services", 1),
		"short id":     strings.Replace(page, `<h1>`, `<h1 id="title">`, 1),
		"class change": strings.Replace(page, `class="buy"`, `class="buy primary"`, 1),
	}

	base := Compute(page)
	for name, v := range variants {
		if Compute(v) == base {
			t.Errorf("%s: hash unchanged", name)
		}
	}
}

func TestCompute_SessionAttributeScenario(t *testing.T) {
	// WHAT: Two fetches differ only by a fresh data-session token.
	// WHY: The content cache must hit on the second fetch.
	first := `<div data-session="abc123abc123abc123abc123">Hello</div>`
	second := `<div data-session="zzz999zzz999zzz999zzz999">Hello</div>`
	if Compute(first) != Compute(second) {
		t.Fatal("data-session change altered the fingerprint")
	}
}

func TestNormalize(t *testing.T) {
	in := "  <div   class=\"a\">\n  Hi <script>x()</script> there <!-- c -->\n</div>  "
	want := `<div class="a"> Hi there </div>`
	if got := Normalize(in); got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

package utils

import (
	"strings"
	"testing"
)

func TestRenderMarkdownSanitizesScript(t *testing.T) {
	out := string(RenderMarkdown("hello <script>alert(1)</script> world"))
	if strings.Contains(out, "<script>") {
		t.Errorf("script tag survived sanitization: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("content lost during rendering: %s", out)
	}
}

func TestRenderMarkdownKeepsEmoji(t *testing.T) {
	out := string(RenderMarkdown("不错 👍🎋"))
	if !strings.Contains(out, "👍🎋") {
		t.Errorf("emoji lost during rendering: %s", out)
	}
}

func TestRandStringLengthAndCharset(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := RandStringBytesMaskImpr(8)
		if len(s) != 8 {
			t.Fatalf("expected length 8, got %d", len(s))
		}
		for _, r := range s {
			if !strings.ContainsRune(letterBytes, r) {
				t.Fatalf("unexpected character %q in %s", r, s)
			}
		}
		seen[s] = true
	}
	if len(seen) < 90 {
		t.Errorf("too many collisions in 100 ids: %d unique", len(seen))
	}
}

package validate

import (
	"errors"
	"testing"
)

func TestCheckAllowedTypes(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name      string
		mediaType string
		size      int64
	}{
		{"report.pdf", "application/pdf", 2 << 20},
		{"deck.ppt", "application/vnd.ms-powerpoint", 1 << 20},
		{"deck.pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation", 10 << 20},
		{"report.PDF", "APPLICATION/PDF", 100},
		{"report.pdf", "application/pdf; charset=binary", 100},
	}
	for _, tc := range cases {
		if err := p.Check(tc.name, tc.mediaType, tc.size); err != nil {
			t.Fatalf("Check(%q, %q, %d): %v", tc.name, tc.mediaType, tc.size, err)
		}
	}
}

func TestCheckExtensionFallback(t *testing.T) {
	p := DefaultPolicy()

	// Absent or generic media types fall back to the extension.
	if err := p.Check("deck.pptx", "", 1024); err != nil {
		t.Fatalf("expected extension fallback for empty media type: %v", err)
	}
	if err := p.Check("slides.PPT", "application/octet-stream", 1024); err != nil {
		t.Fatalf("expected extension fallback for octet-stream: %v", err)
	}
	if err := p.Check("notes.txt", "", 1024); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for .txt, got %v", err)
	}
}

func TestCheckDeclaredTypeIsAuthoritative(t *testing.T) {
	p := DefaultPolicy()

	// A concrete disallowed media type is rejected even with an allowed extension.
	err := p.Check("evil.pdf", "application/zip", 1024)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestCheckSizeCeiling(t *testing.T) {
	p := DefaultPolicy()

	if err := p.Check("big.pdf", "application/pdf", 60<<20); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for 60 MiB, got %v", err)
	}
	if err := p.Check("edge.pdf", "application/pdf", 50<<20); err != nil {
		t.Fatalf("expected exactly 50 MiB to pass: %v", err)
	}

	custom := Policy{MaxBytes: 1 << 20}
	if err := custom.Check("big.pdf", "application/pdf", 2<<20); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge under custom policy, got %v", err)
	}
}

func TestCheckMissingFile(t *testing.T) {
	p := DefaultPolicy()

	if err := p.Check("", "application/pdf", 1024); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile for empty name, got %v", err)
	}
	if err := p.Check("report.pdf", "application/pdf", 0); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile for zero size, got %v", err)
	}
}

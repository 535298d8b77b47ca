package imageref

import (
	"errors"
	"testing"
)

func TestNewReferenceNormalizesIdentifiers(t *testing.T) {
	ref, err := NewReference("0F1E2D3C4B5A69788796A5B4C3D2E1F0", "")
	if err != nil {
		t.Fatalf("new reference: %v", err)
	}

	if ref.PageID != "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0" {
		t.Fatalf("expected dashed lower-case page id, got %q", ref.PageID)
	}
	if !ref.IsCover() {
		t.Fatal("expected empty block id to address the cover")
	}
	if got := ref.Key(); got != "img_0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0_cover" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewReferenceWithBlock(t *testing.T) {
	ref, err := NewReference(
		"0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0",
		"11112222333344445555666677778888",
	)
	if err != nil {
		t.Fatalf("new reference: %v", err)
	}

	if got := ref.Key(); got != "img_0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0_11112222-3333-4444-5555-666677778888" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ref.ElementID(); got != "img-0f1e2d3c4b5a69788796a5b4c3d2e1f0-11112222333344445555666677778888" {
		t.Fatalf("unexpected element id %q", got)
	}
}

func TestNewReferenceRejectsMalformedIDs(t *testing.T) {
	cases := []struct {
		name  string
		page  string
		block string
	}{
		{name: "empty page", page: ""},
		{name: "short page", page: "abc"},
		{name: "non hex page", page: "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
		{name: "urn form", page: "urn:uuid:0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"},
		{name: "bad block", page: "0f1e2d3c4b5a69788796a5b4c3d2e1f0", block: "../etc/passwd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReference(tc.page, tc.block)
			if !errors.Is(err, ErrInvalidID) {
				t.Fatalf("expected ErrInvalidID, got %v", err)
			}
		})
	}
}

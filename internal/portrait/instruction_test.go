package portrait

import (
	"strings"
	"testing"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

func TestBuildInstruction(t *testing.T) {
	tests := []struct {
		name     string
		req      SubmitRequest
		contains []string
		excludes []string
	}{
		{
			name: "full request",
			req: SubmitRequest{
				PetName:    "biscuit",
				Style:      "oil painting",
				Background: "autumn forest",
				Notes:      "keep the red collar",
			},
			contains: []string{
				"Paint a portrait of Biscuit",
				"Art style: oil painting.",
				"Background: autumn forest.",
				"Additional notes: keep the red collar.",
				"natural markings",
			},
		},
		{
			name: "name falls back to subject photo",
			req: SubmitRequest{
				Subjects: []domain.InputAsset{{Name: "mochi"}},
			},
			contains: []string{"Paint a portrait of Mochi"},
		},
		{
			name: "filename fallback drops the extension",
			req: SubmitRequest{
				Subjects: []domain.InputAsset{{Name: "biscuit.jpg"}},
			},
			contains: []string{"Paint a portrait of Biscuit in"},
			excludes: []string{".jpg", ".Jpg"},
		},
		{
			name: "extension-only filename reads as anonymous",
			req: SubmitRequest{
				Subjects: []domain.InputAsset{{Name: ".png"}},
			},
			contains: []string{"Paint a portrait of the pet"},
		},
		{
			name:     "anonymous pet",
			req:      SubmitRequest{},
			contains: []string{"Paint a portrait of the pet"},
			excludes: []string{"Art style", "Background", "Additional notes"},
		},
		{
			name:     "whitespace only hints are dropped",
			req:      SubmitRequest{PetName: "  ", Style: "   ", Notes: "\t"},
			contains: []string{"Paint a portrait of the pet"},
			excludes: []string{"Art style", "Additional notes"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildInstruction(tc.req)
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Errorf("instruction %q missing %q", got, want)
				}
			}
			for _, forbidden := range tc.excludes {
				if strings.Contains(got, forbidden) {
					t.Errorf("instruction %q should not contain %q", got, forbidden)
				}
			}
		})
	}
}

func TestBuildPairInstruction(t *testing.T) {
	req := SubmitRequest{
		Style: "watercolor",
		Subjects: []domain.InputAsset{
			{Name: "biscuit"},
			{Name: "mochi"},
		},
	}
	got := BuildPairInstruction(req)
	for _, want := range []string{
		"joint portrait of Biscuit and Mochi",
		"Art style: watercolor.",
		"equal prominence",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instruction %q missing %q", got, want)
		}
	}

	fromFiles := BuildPairInstruction(SubmitRequest{Subjects: []domain.InputAsset{
		{Name: "biscuit.jpg"},
		{Name: "mochi.png"},
	}})
	if !strings.Contains(fromFiles, "joint portrait of Biscuit and Mochi") {
		t.Errorf("filename-derived pair instruction = %q", fromFiles)
	}
	if strings.Contains(fromFiles, ".Jpg") || strings.Contains(fromFiles, ".Png") {
		t.Errorf("pair instruction leaks file extensions: %q", fromFiles)
	}

	anon := BuildPairInstruction(SubmitRequest{Subjects: []domain.InputAsset{{}, {}}})
	if !strings.Contains(anon, "joint portrait of the two pets") {
		t.Errorf("anonymous pair instruction = %q", anon)
	}

	// One named pet is not enough for the named template.
	half := BuildPairInstruction(SubmitRequest{Subjects: []domain.InputAsset{{Name: "biscuit"}, {}}})
	if !strings.Contains(half, "the two pets") {
		t.Errorf("half-named pair instruction = %q", half)
	}
}

package portrait

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

var nameCaser = cases.Title(language.English)

// BuildInstruction renders the provider instruction for a single-pet
// submission.
func BuildInstruction(req SubmitRequest) string {
	parts := []string{}
	name := petName(req.PetName, req.Subjects, 0)
	if name != "" {
		parts = append(parts, "Paint a portrait of "+name+" in the style of the reference artwork.")
	} else {
		parts = append(parts, "Paint a portrait of the pet in the style of the reference artwork.")
	}
	parts = append(parts, styleParts(req)...)
	parts = append(parts, "Keep the pet's natural markings, proportions and eye color true to the photos.")
	return strings.Join(parts, " ")
}

// BuildPairInstruction renders the instruction for the two-pet variant. Same
// vocabulary as the single template so provider behavior stays comparable.
func BuildPairInstruction(req SubmitRequest) string {
	parts := []string{}
	first := petName("", req.Subjects, 0)
	second := petName("", req.Subjects, 1)
	switch {
	case first != "" && second != "":
		parts = append(parts, "Paint a joint portrait of "+first+" and "+second+" together in the style of the reference artwork.")
	default:
		parts = append(parts, "Paint a joint portrait of the two pets together in the style of the reference artwork.")
	}
	parts = append(parts, styleParts(req)...)
	parts = append(parts, "Give both pets equal prominence and keep each one's natural markings true to its photo.")
	return strings.Join(parts, " ")
}

func styleParts(req SubmitRequest) []string {
	parts := []string{}
	if style := strings.TrimSpace(req.Style); style != "" {
		parts = append(parts, "Art style: "+style+".")
	}
	if background := strings.TrimSpace(req.Background); background != "" {
		parts = append(parts, "Background: "+background+".")
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		parts = append(parts, "Additional notes: "+notes+".")
	}
	return parts
}

// petName prefers the explicit name, then the subject photo's name at idx.
// Photo names are upload filenames, so the extension is stripped.
func petName(explicit string, subjects []domain.InputAsset, idx int) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return nameCaser.String(name)
	}
	if idx < len(subjects) {
		name := strings.TrimSpace(subjects[idx].Name)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		if name != "" {
			return nameCaser.String(name)
		}
	}
	return ""
}

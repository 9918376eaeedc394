package portrait

import (
	"fmt"
	"net/http"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

// Encodings the composition provider accepts. Detected from the bytes, never
// trusted from the upload's declared content type.
var acceptedEncodings = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

func validateSubmit(req SubmitRequest, maxBytes int64, minSubjects, maxSubjects int) error {
	if len(req.Reference.Data) == 0 {
		return fmt.Errorf("%w: reference image is required", domain.ErrInvalidInput)
	}
	if len(req.Subjects) < minSubjects {
		if minSubjects == 2 {
			return fmt.Errorf("%w: exactly two pet photos are required", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: at least one pet photo is required", domain.ErrInvalidInput)
	}
	if len(req.Subjects) > maxSubjects {
		if maxSubjects == 2 {
			return fmt.Errorf("%w: exactly two pet photos are required", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: at most %d pet photos are allowed", domain.ErrInvalidInput, maxSubjects)
	}

	if err := checkAsset("reference image", req.Reference, maxBytes); err != nil {
		return err
	}
	for i, subject := range req.Subjects {
		if err := checkAsset(fmt.Sprintf("pet photo %d", i+1), subject, maxBytes); err != nil {
			return err
		}
	}
	return nil
}

func checkAsset(label string, asset domain.InputAsset, maxBytes int64) error {
	if len(asset.Data) == 0 {
		return fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, label)
	}
	if int64(len(asset.Data)) > maxBytes {
		return fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidInput, label, maxBytes)
	}
	detected := http.DetectContentType(asset.Data)
	if _, ok := acceptedEncodings[detected]; !ok {
		return fmt.Errorf("%w: %s has unsupported encoding %s", domain.ErrInvalidInput, label, detected)
	}
	return nil
}

// Package archive builds in-memory zip bundles for portrait downloads.
package archive

import (
	"archive/zip"
	"bytes"
	"strings"
)

type Entry struct {
	Filename string
	Data     []byte
}

// Build packs the entries into a zip archive. Entries that cannot be written
// are skipped rather than aborting the bundle.
func Build(entries []Entry) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}

// ExtensionForMIME maps common image MIME types to file extensions.
func ExtensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

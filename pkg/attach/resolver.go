// Package attach normalizes files picked from the camera, the media
// library, the filesystem or the audio recorder into a single upload
// descriptor. Everything picker-specific (missing MIME types, bare
// extensions, content sniffing) is resolved here so the rest of the
// client only ever sees a Descriptor.
package attach

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Kind is the server-facing attachment classifier. It is derived from the
// resolved MIME prefix and drives rendering decisions (image thumbnail vs.
// generic file tile vs. audio player), not the raw MIME string.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Source is what a picker (or the audio recorder) hands us. DeclaredMIME
// and SizeBytes are frequently empty — platform pickers are inconsistent
// about both.
type Source struct {
	Path         string
	DeclaredMIME string
	Name         string
	SizeBytes    int64
}

// Descriptor is the resolved upload payload. It is consumed exactly once
// by the send controller and never stored after the send completes.
type Descriptor struct {
	Path      string
	MIME      string
	Name      string
	SizeBytes int64
	Kind      Kind

	// Pixel bounds for image attachments, 0 when unknown or not an image.
	Width  int
	Height int
}

const fallbackMIME = "application/octet-stream"

// extensionMIMEs covers the types the pickers commonly fail to declare.
// Anything not listed here falls through to content sniffing.
var extensionMIMEs = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".pdf":  "application/pdf",
	".m4a":  "audio/m4a",
	".mp3":  "audio/mpeg",
	".txt":  "text/plain",
}

// Resolve classifies a picked file into a Descriptor. Classification never
// fails: when every tier comes up empty the file degrades to a generic
// binary attachment and the send proceeds.
//
// MIME resolution order: explicit type from the source API, extension
// table, content sniff, generic binary fallback.
func Resolve(src Source) Descriptor {
	desc := Descriptor{
		Path:      src.Path,
		Name:      src.Name,
		SizeBytes: src.SizeBytes,
	}
	if desc.Name == "" {
		desc.Name = filepath.Base(src.Path)
	}

	desc.MIME = strings.TrimSpace(src.DeclaredMIME)
	if desc.MIME == "" {
		desc.MIME = mimeFromExtension(desc.Name)
	}
	if desc.MIME == "" {
		desc.MIME = mimeFromContent(src.Path)
	}
	if desc.MIME == "" {
		desc.MIME = fallbackMIME
	}
	desc.Kind = KindForMIME(desc.MIME)

	if desc.SizeBytes == 0 {
		if info, err := os.Stat(src.Path); err == nil {
			desc.SizeBytes = info.Size()
		}
	}
	if desc.Kind == KindImage {
		desc.Width, desc.Height = probeImageBounds(src.Path)
	}
	return desc
}

// KindForMIME maps a MIME string to the server-facing classifier.
func KindForMIME(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	default:
		return KindFile
	}
}

func mimeFromExtension(name string) string {
	return extensionMIMEs[strings.ToLower(filepath.Ext(name))]
}

// mimeFromContent sniffs the file's magic bytes. Returns "" when the file
// is unreadable or the detector only produces the generic fallback, so the
// caller's tiering stays explicit.
func mimeFromContent(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	if mt.Is(fallbackMIME) {
		return ""
	}
	return mt.String()
}

// probeImageBounds decodes only the image header. Bounds are optional
// metadata for the upload; failures are not worth surfacing.
func probeImageBounds(path string) (w, h int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

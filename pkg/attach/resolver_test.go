package attach

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestResolveDeclaredMIMEWins(t *testing.T) {
	desc := Resolve(Source{Path: "/nonexistent/picked.bin", DeclaredMIME: "video/mp4"})
	assert.Equal(t, "video/mp4", desc.MIME)
	assert.Equal(t, KindVideo, desc.Kind)
	assert.Equal(t, "picked.bin", desc.Name, "name falls back to the path's base")
}

func TestResolveExtensionTable(t *testing.T) {
	for _, tc := range []struct {
		name string
		mime string
		kind Kind
	}{
		{"photo.jpg", "image/jpeg", KindImage},
		{"photo.JPEG", "image/jpeg", KindImage},
		{"clip.mp4", "video/mp4", KindVideo},
		{"notes.pdf", "application/pdf", KindFile},
		{"voice.m4a", "audio/m4a", KindAudio},
	} {
		t.Run(tc.name, func(t *testing.T) {
			desc := Resolve(Source{Path: "/nonexistent/" + tc.name})
			assert.Equal(t, tc.mime, desc.MIME)
			assert.Equal(t, tc.kind, desc.Kind)
		})
	}
}

func TestResolveSniffsContentForUnknownExtension(t *testing.T) {
	path := writeTempFile(t, "mystery.dat", encodePNG(t, 4, 4))
	desc := Resolve(Source{Path: path})
	assert.Equal(t, "image/png", desc.MIME)
	assert.Equal(t, KindImage, desc.Kind)
}

func TestResolveFallsBackToOctetStream(t *testing.T) {
	path := writeTempFile(t, "mystery.xyz9", []byte{0x00, 0x01, 0x02, 0xff, 0xfe})
	desc := Resolve(Source{Path: path})
	assert.Equal(t, "application/octet-stream", desc.MIME)
	assert.Equal(t, KindFile, desc.Kind, "classification degrades, never errors")
}

func TestResolveStatsSizeWhenMissing(t *testing.T) {
	data := []byte("hello attachment")
	path := writeTempFile(t, "note.txt", data)
	desc := Resolve(Source{Path: path})
	assert.Equal(t, int64(len(data)), desc.SizeBytes)
}

func TestResolveKeepsDeclaredSize(t *testing.T) {
	desc := Resolve(Source{Path: "/nonexistent/a.pdf", SizeBytes: 1234})
	assert.Equal(t, int64(1234), desc.SizeBytes)
}

func TestResolveProbesImageBounds(t *testing.T) {
	path := writeTempFile(t, "pic.png", encodePNG(t, 12, 7))
	desc := Resolve(Source{Path: path})
	assert.Equal(t, 12, desc.Width)
	assert.Equal(t, 7, desc.Height)
}

func TestKindForMIME(t *testing.T) {
	assert.Equal(t, KindImage, KindForMIME("image/webp"))
	assert.Equal(t, KindVideo, KindForMIME("video/quicktime"))
	assert.Equal(t, KindAudio, KindForMIME("audio/mpeg"))
	assert.Equal(t, KindFile, KindForMIME("application/pdf"))
	assert.Equal(t, KindFile, KindForMIME(""))
}

package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/postly/postly/config"
)

// UploadFieldName is the multipart field carrying the image attachment.
const UploadFieldName = "image"

// MaxUploadBytes caps accepted attachment size.
const MaxUploadBytes = 500000

// Allowed MIME types mapped to the extension the stored file gets.
var mimeExtensions = map[string]string{
	"image/png":  "png",
	"image/jpg":  "jpg",
	"image/jpeg": "jpeg",
}

// SaveImage validates and stores the request's image attachment, returning
// the storage path. Filenames are time-ordered UUIDs so every upload is a
// new file; there is no versioning. The saved path is recorded on the gin
// context so Fail can delete it if the request errors out downstream.
func SaveImage(ctx *gin.Context) (string, error) {
	file, header, err := ctx.Request.FormFile(UploadFieldName)
	if err != nil {
		return "", ErrValidation("an image upload is required")
	}
	defer file.Close()

	ext, ok := mimeExtensions[header.Header.Get("Content-Type")]
	if !ok {
		return "", ErrValidation("Invalid file type!")
	}
	if header.Size > MaxUploadBytes {
		return "", ErrValidation("file exceeds the 500000 byte upload limit")
	}

	dir := config.Get().UploadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ErrStore("failed to prepare upload directory")
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return "", ErrStore("failed to generate upload filename")
	}
	dst := filepath.Join(dir, id.String()+"."+ext)

	out, err := os.Create(dst)
	if err != nil {
		return "", ErrStore("failed to save file")
	}
	defer out.Close()

	// FormFile's reported size is not trusted; the limited reader enforces
	// the cap on what actually arrives.
	lr := &io.LimitedReader{R: file, N: MaxUploadBytes + 1}
	written, err := io.Copy(out, lr)
	if err != nil {
		_ = os.Remove(dst)
		return "", ErrStore("failed to write file")
	}
	if written > MaxUploadBytes {
		_ = os.Remove(dst)
		return "", ErrValidation("file exceeds the 500000 byte upload limit")
	}

	ctx.Set(ContextUploadPathKey, dst)
	return dst, nil
}

// RemoveFile deletes a stored upload. Failures are logged, never surfaced:
// file cleanup must not fail the primary response.
func RemoveFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if Sugar != nil {
			Sugar.Warnf("failed to remove file %s: %v", path, err)
		}
	}
}

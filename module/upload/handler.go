package upload

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"PChat/global"
	"PChat/logger"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadBytes = 5 << 20

// allowedTypes maps accepted image content types to the stored extension.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var extContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// HandlerUpload accepts one image in the "file" multipart field and stores
// it under a server-chosen name. The client-supplied filename is only used
// as a content-type fallback, never as a path.
func HandlerUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, errs.ErrUploadTooLarge)
		return
	}

	contentType := file.Header.Get("Content-Type")
	ext, ok := allowedTypes[contentType]
	if !ok {
		ext, ok = extFromName(file.Filename)
		if !ok {
			c.JSON(http.StatusBadRequest, errs.ErrUploadInvalid)
			return
		}
	}

	dir := global.Global.UploadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Errorf("[upload] mkdir %s: %v", dir, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		logger.Errorf("[upload] save %s: %v", name, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": "/uploads/" + name})
}

func extFromName(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if _, ok := extContentTypes[ext]; !ok {
		return "", false
	}
	return ext, true
}

// HandlerServe streams a stored image back. Only the basename of the path
// parameter is honored, so traversal sequences cannot escape the upload dir.
func HandlerServe(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		c.Status(http.StatusNotFound)
		return
	}

	contentType, ok := extContentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	path := filepath.Join(global.Global.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.File(path)
}

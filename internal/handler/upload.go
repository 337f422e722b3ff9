package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUploadSize caps attachments at 50 MB, the Bot API limit for bots.
const maxUploadSize = 50 << 20

type UploadHandler interface {
	UploadFile(c *gin.Context)
}

type uploadHandler struct {
	uploadDir string
	logger    *zap.Logger
}

func NewUploadHandler(uploadDir string, logger *zap.Logger) UploadHandler {
	return &uploadHandler{uploadDir: uploadDir, logger: logger}
}

// UploadFile handles POST /api/v1/files. The file is stored under a random
// name; the detected media type decides whether it should be sent as a photo
// or a document later.
func (h *uploadHandler) UploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("Failed to create upload directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	name := uuid.NewString() + filepath.Ext(fileHeader.Filename)
	dst := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
		h.logger.Error("Failed to save uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	mtype, err := mimetype.DetectFile(dst)
	if err != nil {
		h.logger.Warn("Failed to detect mime type", zap.String("file", name), zap.Error(err))
	}
	detected := "application/octet-stream"
	if mtype != nil {
		detected = mtype.String()
	}

	h.logger.Info("File uploaded",
		zap.String("stored_name", name),
		zap.String("original_name", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size),
		zap.String("mime_type", detected))

	c.JSON(http.StatusOK, gin.H{
		"file_name":     name,
		"original_name": fileHeader.Filename,
		"size":          fileHeader.Size,
		"mime_type":     detected,
	})
}

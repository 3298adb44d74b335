package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
)

// openUpload opens the multipart "file" field. On failure it has already
// written a 400.
func openUpload(c *gin.Context, h *BaseHandler) (multipart.File, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	header, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "A spreadsheet must be uploaded in the file field", err)
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		h.badRequest(c, "Uploaded file could not be read", err)
		return nil, false
	}
	return file, true
}

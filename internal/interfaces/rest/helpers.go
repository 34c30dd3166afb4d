package rest

import (
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
	"github.com/screenlab/reports/pkg/serialize"
)

// RespondAppError sends a standardised error response using pkg/errors.
// Requests that negotiated CSV output get the flat key/value error table
// instead of the JSON shape, so a failed export still parses in the
// client's expected format.
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	if code >= 500 {
		log.Printf("ERROR [%d] %s %s: %s", code, c.Request.Method, c.Request.URL.Path, err.Error())
	}

	resp := errors.ToResponse(err)
	if wantsCSV(c) {
		c.Header("Content-Type", constants.CSVMimeType)
		c.Status(code)
		payload := map[string]interface{}{
			"code":    resp.Code,
			"message": resp.Message,
		}
		if werr := serialize.WriteCSVError(c.Writer, payload); werr != nil {
			log.Printf("ERROR: writing error table: %v", werr)
		}
		return
	}
	c.JSON(code, resp)
}

// wantsCSV reports whether the request asked for CSV output, by format
// parameter or Accept header.
func wantsCSV(c *gin.Context) bool {
	if c.Query(constants.ParamFormat) == constants.FormatCSV {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), constants.CSVMimeType)
}

// SetDisposition marks the response as an attachment download
func SetDisposition(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/brosis-admin-api/internal/middleware"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/service"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/brosis-admin-api/pkg/spreadsheet"
)

const uploadField = "file"

// actorFromContext builds the operator identity from the JWT claims.
func actorFromContext(c *gin.Context) (service.BulkActor, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return service.BulkActor{}, false
	}
	return service.BulkActor{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		Area:     claims.Area,
		Meta:     requestMeta(c),
	}, true
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent"), RequestID: requestid.Value(c)}
}

// readUpload parses the multipart spreadsheet under the "file" field.
func readUpload(c *gin.Context, maxBytes int64) ([]spreadsheet.Row, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, appErrors.ErrPayloadTooLarge
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "a spreadsheet must be uploaded in the \"file\" field")
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close()

	rows, err := spreadsheet.Read(header.Filename, file)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only .xlsx and .csv files are supported")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read spreadsheet")
	}
	return rows, nil
}

// pageParams reads page and limit, accepting per_page as an alias of limit.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit := c.Query("limit")
	if limit == "" {
		limit = c.Query("per_page")
	}
	size, _ := strconv.Atoi(limit)
	return models.PageWindow(page, size)
}

func paginationMeta(p *models.Pagination) map[string]interface{} {
	return map[string]interface{}{"pagination": p}
}

// queryBool returns nil when key is absent or not a boolean.
func queryBool(c *gin.Context, key string) *bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

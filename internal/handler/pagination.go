package handler

import (
	"strconv"

	"tbnt/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// Window is an offset/limit slice of a newest-first message list.
type Window struct {
	Skip  int
	Limit int
}

// parseWindow reads the skip and limit query parameters. Missing or
// malformed values fall back to the defaults; the service clamps the rest.
func parseWindow(c *gin.Context) Window {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		skip = 0
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultHistoryLimit)))
	if err != nil || limit < 1 {
		limit = service.DefaultHistoryLimit
	}
	if limit > service.MaxHistoryLimit {
		limit = service.MaxHistoryLimit
	}

	return Window{Skip: skip, Limit: limit}
}

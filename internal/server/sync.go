package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	syncdomain "github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	"github.com/smallbiznis/crmfeed/pkg/db/pagination"
)

const maxOrderEvents = 1000

type triggerSyncRequest struct {
	Projects string `json:"projects"`
	Test     bool   `json:"test"`
}

type orderEventsRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

type syncLogResponse struct {
	ID         string    `json:"id"`
	Projects   string    `json:"projects"`
	Test       bool      `json:"test"`
	Result     string    `json:"result"`
	HTTPStatus int       `json:"http_status"`
	Message    string    `json:"message,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) TriggerSync(c *gin.Context) {
	var req triggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projects := strings.TrimSpace(req.Projects)
	if projects == "" {
		AbortWithError(c, newValidationError("projects", "required", "projects is required"))
		return
	}

	entry, err := s.sync.Sync(c.Request.Context(), projects, req.Test)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSyncLogResponse(entry)})
}

// OrderEvents resolves changed orders into projects and triggers one sync
// for all of them.
func (s *Server) OrderEvents(c *gin.Context) {
	var req orderEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.OrderIDs) == 0 {
		AbortWithError(c, newValidationError("order_ids", "required", "order_ids is required"))
		return
	}
	if len(req.OrderIDs) > maxOrderEvents {
		AbortWithError(c, newValidationError("order_ids", "too_many", "at most 1000 order ids per request"))
		return
	}

	ctx := c.Request.Context()
	set := syncdomain.NewProjectSet()
	if err := s.sync.QueueOrders(ctx, set, req.OrderIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.sync.Flush(ctx, set)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"projects": set.IDs()}
	if entry != nil {
		resp["sync"] = toSyncLogResponse(entry)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListProjects returns every project id so clients can sync in batches.
func (s *Server) ListProjects(c *gin.Context) {
	ids, err := s.sync.ProjectIDs(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"data": ids})
}

// ListSyncLogs pages through the sync log, newest first. The page token
// is the last id of the previous page.
func (s *Server) ListSyncLogs(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 100"))
		return
	}
	if page.PageSize == 0 {
		page.PageSize = syncLogEntryCount
	}
	if page.PageSize < 0 || page.PageSize > syncLogEntryCount {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 100"))
		return
	}

	var before int64
	if token := strings.TrimSpace(page.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err == nil {
			before, err = strconv.ParseInt(cursor.ID, 10, 64)
		}
		if err != nil || before <= 0 {
			AbortWithError(c, newValidationError("page_token", "invalid_page_token", "page_token is invalid"))
			return
		}
	}

	logs, err := s.sync.LogsBefore(c.Request.Context(), before, page.PageSize+1)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logs, info, err := pagination.BuildCursorPage(logs, page.PageSize, func(entry syncdomain.SyncLog) pagination.Cursor {
		return pagination.Cursor{ID: strconv.FormatInt(entry.ID, 10)}
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]syncLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, toSyncLogResponse(&logs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "page_info": info})
}

func toSyncLogResponse(entry *syncdomain.SyncLog) syncLogResponse {
	return syncLogResponse{
		ID:         strconv.FormatInt(entry.ID, 10),
		Projects:   entry.Projects,
		Test:       entry.Test,
		Result:     entry.Result,
		HTTPStatus: entry.HTTPStatus,
		Message:    entry.Message,
		DurationMs: entry.DurationMs,
		CreatedAt:  entry.CreatedAt,
	}
}

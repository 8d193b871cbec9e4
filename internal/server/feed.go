package server

import (
	"encoding/xml"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	syncdomain "github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	"github.com/smallbiznis/crmfeed/internal/feed/document"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"go.uber.org/zap"
)

const (
	xmlContentType = "application/xml"

	syncLogEntryCount = 100
)

// Feed serves the project document. Feed errors answer 400 with the plain
// message so the CRM shows it in its sync report.
func (s *Server) Feed(c *gin.Context) {
	body, err := s.feeds.Render(c.Request.Context(), c.Param("query"))
	if err != nil {
		if feeddomain.IsFeedError(err) {
			_ = c.Error(err)
			c.String(http.StatusBadRequest, err.Error())
			c.Abort()
			return
		}
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, xmlContentType, body)
}

type aboutDocument struct {
	XMLName            xml.Name          `xml:"About"`
	Version            string            `xml:"Version"`
	GoVersion          string            `xml:"GoVersion"`
	Environment        string            `xml:"Environment"`
	Locale             string            `xml:"Locale"`
	ShopID             int               `xml:"ShopId"`
	TestServer         bool              `xml:"TestServer"`
	ActiveIntegrations []string          `xml:"ActiveIntegrations>Integration"`
	SystemInfo         aboutSystemInfo   `xml:"SystemInfo"`
	SyncLog            []aboutSyncRecord `xml:"LatestSyncLogEntries>Entry"`
}

type aboutSystemInfo struct {
	Hostname string `xml:"Hostname"`
	OS       string `xml:"OS"`
	Arch     string `xml:"Arch"`
}

type aboutSyncRecord struct {
	ID         int64  `xml:"Id,attr"`
	CreatedAt  string `xml:"Date,attr"`
	Result     string `xml:"Result,attr"`
	Test       bool   `xml:"Test,attr"`
	HTTPStatus int    `xml:"HttpStatus,attr,omitempty"`
	DurationMs int64  `xml:"DurationMs,attr"`
	Projects   string `xml:"Projects"`
	Message    string `xml:"Message,omitempty"`
}

// About reports the build, the active options and the latest sync log
// entries for support.
func (s *Server) About(c *gin.Context) {
	opts := s.feedCfg.Get()

	logs, err := s.sync.RecentLogs(c.Request.Context(), syncLogEntryCount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		s.log.Warn("hostname unavailable", zap.Error(err))
	}

	doc := aboutDocument{
		Version:            s.cfg.AppVersion,
		GoVersion:          runtime.Version(),
		Environment:        s.cfg.Environment,
		Locale:             opts.Locale,
		ShopID:             opts.ShopID,
		TestServer:         opts.TestServer,
		ActiveIntegrations: activeIntegrations(opts.EPOEnabled, opts.VATNumberEnabled, opts.SyncProductDescription, len(opts.FieldMappings()) > 0),
		SystemInfo: aboutSystemInfo{
			Hostname: hostname,
			OS:       runtime.GOOS,
			Arch:     runtime.GOARCH,
		},
		SyncLog: toAboutSyncLog(logs),
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, xmlContentType, append([]byte(document.Header), body...))
}

func activeIntegrations(epo, vatNumber, description, customFields bool) []string {
	var active []string
	if epo {
		active = append(active, "extra_product_options")
	}
	if vatNumber {
		active = append(active, "vat_number")
	}
	if description {
		active = append(active, "product_description")
	}
	if customFields {
		active = append(active, "custom_fields")
	}
	return active
}

func toAboutSyncLog(logs []syncdomain.SyncLog) []aboutSyncRecord {
	out := make([]aboutSyncRecord, 0, len(logs))
	for _, entry := range logs {
		out = append(out, aboutSyncRecord{
			ID:         entry.ID,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
			Result:     entry.Result,
			Test:       entry.Test,
			HTTPStatus: entry.HTTPStatus,
			DurationMs: entry.DurationMs,
			Projects:   entry.Projects,
			Message:    entry.Message,
		})
	}
	return out
}

package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crmfeed/internal/config"
	"go.uber.org/zap"
)

var errAccessDenied = errors.New("access_denied")

// FeedAccessRequired admits the CRM to the XML endpoints. The caller must
// come from an allowed address, or from the configured proxy range when a
// proxy header is set, and must present a secret that has not expired.
func (s *Server) FeedAccessRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := s.feedCfg.Get()

		if err := checkClientIP(c, opts); err != nil {
			denyFeedAccess(c, err)
			return
		}

		secret := strings.TrimSpace(c.Query("secret"))
		if secret == "" {
			denyFeedAccess(c, fmt.Errorf("%w: Failed to validate secret.", errAccessDenied))
			return
		}
		ok, err := s.sync.ValidSecret(c.Request.Context(), secret)
		if err != nil {
			s.log.Error("secret lookup failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
		if !ok {
			denyFeedAccess(c, fmt.Errorf("%w: Failed to validate secret.", errAccessDenied))
			return
		}

		c.Next()
	}
}

// APITokenRequired checks the bearer token of the JSON API.
func (s *Server) APITokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.cfg.APIToken)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func denyFeedAccess(c *gin.Context, err error) {
	_ = c.Error(err)
	c.String(http.StatusUnauthorized, strings.TrimPrefix(err.Error(), errAccessDenied.Error()+": "))
	c.Abort()
}

func checkClientIP(c *gin.Context, opts config.FeedOptions) error {
	if opts.ProxyHeader != "" {
		return checkProxyIP(c.GetHeader(headerName(opts.ProxyHeader)), opts.ProxyIPStart, opts.ProxyIPEnd)
	}

	remote := c.RemoteIP()
	addr, err := netip.ParseAddr(remote)
	if err == nil {
		addr = addr.Unmap()
		for _, allowed := range opts.AllowedIPs {
			candidate, err := netip.ParseAddr(strings.TrimSpace(allowed))
			if err == nil && candidate.Unmap() == addr {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s IP is not allowed.", errAccessDenied, remote)
}

// checkProxyIP accepts a single IPv4 address within [low, high].
func checkProxyIP(value, low, high string) error {
	ip, ok := parseIPv4(value)
	lowAddr, lowOK := parseIPv4(low)
	highAddr, highOK := parseIPv4(high)
	if !ok || !lowOK || !highOK {
		return fmt.Errorf("%w: Invalid IP in range or request was made from an invalid IP.", errAccessDenied)
	}
	if lowAddr.Compare(ip) <= 0 && ip.Compare(highAddr) <= 0 {
		return nil
	}
	return fmt.Errorf("%w: Proxy ip was not in range.", errAccessDenied)
}

func parseIPv4(value string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	return addr, addr.Is4()
}

// headerName also accepts CGI style names such as HTTP_X_REAL_IP.
func headerName(name string) string {
	name = strings.TrimSpace(name)
	if rest, ok := strings.CutPrefix(strings.ToUpper(name), "HTTP_"); ok {
		return strings.ReplaceAll(rest, "_", "-")
	}
	return name
}

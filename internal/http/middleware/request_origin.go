package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/artisan-backend/internal/platform/ctxutil"
)

// AttachRequestOrigin records the scheme and host the client used, honoring
// X-Forwarded-Proto and X-Forwarded-Host from a fronting proxy. Forwarded
// values that are not http(s) or not a plain host[:port] are ignored.
func AttachRequestOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := ctxutil.RequestOrigin{
			Scheme: strings.ToLower(firstForwarded(c.GetHeader("X-Forwarded-Proto"))),
			Host:   firstForwarded(c.GetHeader("X-Forwarded-Host")),
		}
		if origin.Scheme != "http" && origin.Scheme != "https" {
			origin.Scheme = ""
		}
		if !validHost(origin.Host) {
			origin.Host = ""
		}
		if origin.Scheme == "" {
			origin.Scheme = "http"
			if c.Request.TLS != nil {
				origin.Scheme = "https"
			}
		}
		if origin.Host == "" {
			origin.Host = c.Request.Host
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestOrigin(c.Request.Context(), origin))
		c.Next()
	}
}

func firstForwarded(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func validHost(h string) bool {
	if h == "" {
		return false
	}
	for _, r := range h {
		if r <= ' ' || r == 0x7f || strings.ContainsRune("/\\@?#", r) {
			return false
		}
	}
	return true
}

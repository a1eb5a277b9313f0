package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddlewareWithOrigins allows the configured origins. An entry of the
// form "https://*.example.com" matches any subdomain.
func CORSMiddlewareWithOrigins(allowedOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	config := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return isOriginAllowed(origin, origins)
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(config)
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin || matchOriginPattern(origin, allowed) {
			return true
		}
	}
	return false
}

// matchOriginPattern supports a single leading wildcard label.
func matchOriginPattern(origin, pattern string) bool {
	idx := strings.Index(pattern, "*.")
	if idx < 0 {
		return false
	}
	scheme := pattern[:idx]
	suffix := pattern[idx+1:]
	return strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, suffix) && len(origin) > len(scheme)+len(suffix)
}

package middleware

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
)

// CORSConfig builds the CORS policy from CORS_ORIGINS, with localhost
// defaults added in development.
func CORSConfig() cors.Config {
	config := cors.DefaultConfig()

	var origins []string
	for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "development" || env == "dev" {
		origins = append(origins, "http://localhost:3000", "http://localhost:8080")
	}
	if len(origins) == 0 {
		log.Println("no CORS origins configured, cross-origin requests will be refused")
		origins = []string{"https://invalid.localhost"}
	}

	config.AllowOrigins = origins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"X-CSRF-Token", "x-api-key",
	}
	config.ExposeHeaders = []string{"Content-Disposition", "X-Content-Hash"}
	config.MaxAge = 12 * time.Hour
	return config
}

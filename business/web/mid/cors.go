package mid

import (
	"net/http"

	"github.com/rs/cors"
)

// Cors wraps the handler with the response headers needed for Cross-Origin
// Resource Sharing. Preflight OPTIONS requests are answered before they reach
// the router.
func Cors(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
	})

	return c.Handler
}

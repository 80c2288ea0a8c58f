// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the largest API request body accepted.
	MaxJSONBody = 1 << 20 // 1 MB
)

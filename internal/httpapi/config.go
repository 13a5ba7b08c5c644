package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for form and JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// stepTimeout is how long a WebSocket connection may stay silent between
// client messages before it is closed.
var stepTimeout = 5 * time.Minute

// SetStepTimeout sets the WebSocket idle timeout (<=0 restores the default).
func SetStepTimeout(d time.Duration) {
	if d <= 0 {
		d = 5 * time.Minute
	}
	stepTimeout = d
}

// pingInterval is the period of server keep-alive pings on WebSocket connections.
var pingInterval = 25 * time.Second

// SetPingInterval sets the WebSocket keep-alive period (<=0 disables pings).
func SetPingInterval(d time.Duration) {
	pingInterval = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

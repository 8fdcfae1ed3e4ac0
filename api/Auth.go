package api

// AuthRequest is sent to the application's auth endpoint to obtain a signature for a channel
type AuthRequest struct {
	Sid      string `json:"sid"`
	Device   string `json:"device"`
	Service  string `json:"service"`
	Resource string `json:"resource"`
	TTL      int    `json:"ttl"`
	Read     bool   `json:"read"`
	Write    bool   `json:"write"`
}

// AuthResponse is the reply of the auth endpoint
type AuthResponse struct {
	Auth string `json:"auth"`
}

// Authentication methods for the auth endpoint
const (
	AuthMethodGet  = "get"
	AuthMethodPost = "post"
)

// DefaultAuthPath is the route of the signing endpoint
const DefaultAuthPath = "/auth"

// DefaultReadPath is the REST route for reading public resource history
const DefaultReadPath = "/api/public/resource"

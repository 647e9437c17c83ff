package model

// UserStats counts requests made by one user, broken down by endpoint.
type UserStats struct {
	Total     uint64            `json:"total"`
	Endpoints UserEndpointStats `json:"endpoints"`
}

// UserEndpointStats is a per-endpoint request counter for a single user.
type UserEndpointStats map[string]uint64

// GlobalStats summarizes the whole proxy instance.
type GlobalStats struct {
	Users    int    `json:"users"`
	Services int    `json:"services"`
	Requests uint64 `json:"requests"`
}

// ErrorResponse is the uniform JSON error body returned by the management
// API on any non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
}

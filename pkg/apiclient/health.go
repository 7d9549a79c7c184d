package apiclient

import "time"

// Health is the response of the health endpoints.
type Health struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// StoreHealth is the health of one extent store.
type StoreHealth struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the liveness status of the server.
func (c *Client) Health() (*Health, error) {
	return getResource[Health](c, "/health")
}

// Ready returns the readiness status of the server.
func (c *Client) Ready() (*Health, error) {
	return getResource[Health](c, "/health/ready")
}

// StoreHealth checks every extent store. An unhealthy store yields an
// *APIError with status 503.
func (c *Client) StoreHealth() ([]StoreHealth, error) {
	var resp struct {
		Data []StoreHealth `json:"data"`
	}
	if err := c.get("/health/stores", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

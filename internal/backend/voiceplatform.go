package backend

import "context"

// OutboundCallRequest asks the voice platform to place a confirmation
// call to a customer. Variables are substituted into the agent's script.
type OutboundCallRequest struct {
	AgentID   string            `json:"agent_id"`
	Phone     string            `json:"recipient_phone"`
	Variables map[string]string `json:"variables,omitempty"`
}

// OutboundCallResult is the platform's acknowledgement of a placed call.
type OutboundCallResult struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// OutboundCaller places outbound calls through the voice AI platform.
type OutboundCaller interface {
	StartCall(ctx context.Context, req OutboundCallRequest) (*OutboundCallResult, error)
}

// HTTPVoicePlatformClient talks to the voice AI platform over HTTP.
type HTTPVoicePlatformClient struct {
	api     httpAPI
	agentID string
}

func NewVoicePlatformClient(baseURL, apiKey, agentID string) *HTTPVoicePlatformClient {
	return &HTTPVoicePlatformClient{
		api:     newHTTPAPI("voice-platform", baseURL, apiKey),
		agentID: agentID,
	}
}

func (c *HTTPVoicePlatformClient) StartCall(ctx context.Context, req OutboundCallRequest) (*OutboundCallResult, error) {
	if req.AgentID == "" {
		req.AgentID = c.agentID
	}
	var out OutboundCallResult
	if err := c.api.postJSON(ctx, "/call", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

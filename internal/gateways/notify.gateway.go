package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// SinkClient delivers user-facing messages to the push endpoint. Delivery
// is fire-and-forget from the platform's point of view: callers log
// failures, they never propagate them.
type SinkClient struct {
	url     string
	timeout time.Duration
	client  *fasthttp.Client
}

func NewSinkClient(url string, timeout time.Duration) *SinkClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &SinkClient{
		url:     url,
		timeout: timeout,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

type pushMessage struct {
	To       int64  `json:"to"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	Sound    string `json:"sound"`
}

func (c *SinkClient) Notify(ctx context.Context, userID int64, title, message, category string) error {
	body, err := json.Marshal(pushMessage{
		To:       userID,
		Title:    title,
		Body:     message,
		Category: category,
		Sound:    "default",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK && resp.StatusCode() != fasthttp.StatusAccepted {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode())
	}

	return nil
}

package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

var ErrRelayStatus = errors.New("relay api error")

// HeaderProvider supplies per-request headers (auth, bot identity).
type HeaderProvider func() map[string]string

// RetryPolicy applies to idempotent calls and 5xx answers only.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: 100 * time.Millisecond, Max: 3200 * time.Millisecond}
}

// delay doubles per attempt starting at Base, capped at Max.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt && d < p.Max; i++ {
		d *= 2
	}
	return min(d, p.Max)
}

// Client posts robot status text and workspace images to the chat relay.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	timeout time.Duration
	retry   RetryPolicy
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		timeout: 10 * time.Second,
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health fetches the relay config; any answer means the relay is up.
func (c *Client) Health(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.call(ctx, call{method: fasthttp.MethodGet, path: "/config", out: &cfg, idempotent: true}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) Reply(ctx context.Context, req ReplyRequest) error {
	return c.call(ctx, call{method: fasthttp.MethodPost, path: "/reply", in: req})
}

func (c *Client) SendText(ctx context.Context, room, text string) error {
	return c.Reply(ctx, TextReply(room, text))
}

func (c *Client) SendImage(ctx context.Context, room string, png []byte) error {
	return c.Reply(ctx, ImageReply(room, png))
}

// TextReply and ImageReply build the relay's reply frames, shared by both transports.
func TextReply(room, text string) ReplyRequest {
	return ReplyRequest{Type: "text", Room: room, Data: text}
}

func ImageReply(room string, png []byte) ReplyRequest {
	return ReplyRequest{Type: "image", Room: room, Data: base64.StdEncoding.EncodeToString(png)}
}

type call struct {
	method     string
	path       string
	in         any
	out        any
	idempotent bool
}

func (c *Client) call(ctx context.Context, cl call) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(cl.method)
	req.SetRequestURI(c.baseURL + cl.path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if cl.in != nil {
		body, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", cl.path, err)
		}
		req.SetBody(body)
	}

	attempts := 1
	if cl.idempotent {
		attempts = max(c.retry.Attempts, 1)
	}
	var err error
	for attempt := 1; ; attempt++ {
		var retryable bool
		if retryable, err = c.do(ctx, req, resp, cl); err == nil || !retryable || attempt >= attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(c.retry.delay(attempt)):
		}
	}
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, cl call) (bool, error) {
	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return true, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		body := resp.Body()
		if len(body) > 512 {
			body = body[:512]
		}
		return status >= 500 && status != fasthttp.StatusNotImplemented,
			fmt.Errorf("%w: %s status=%d body=%s", ErrRelayStatus, cl.path, status, body)
	}
	if cl.out == nil {
		return false, nil
	}
	if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
		return false, fmt.Errorf("decode %s: %w", cl.path, err)
	}
	return false, nil
}

package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/afriproperty/payment-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	// ErrUpstreamAuth means the provider rejected our credentials.
	ErrUpstreamAuth = errors.New("provider rejected credentials")
	// ErrUpstreamTimeout means the provider did not answer in time. Callers
	// must treat the request outcome as unknown, not failed.
	ErrUpstreamTimeout = errors.New("provider request timed out")
)

// TimestampFormat is the provider's required timestamp layout (YYYYMMDDHHmmss).
const TimestampFormat = "20060102150405"

type Config struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	Shortcode          string
	Passkey            string
	InitiatorName      string
	SecurityCredential string
	CallbackURL        string
	Timeout            time.Duration
	MaxConns           int
	// TokenSafetyMargin is subtracted from the provider's stated token
	// validity so we never send a token that expires mid-flight.
	TokenSafetyMargin time.Duration
}

// DarajaClient talks to the M-Pesa Daraja API: OAuth token acquisition,
// STK push collections and B2C disbursements.
type DarajaClient struct {
	config *Config
	client *fasthttp.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

func NewDarajaClient(config *Config) (*DarajaClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxConns == 0 {
		config.MaxConns = 100
	}
	if config.TokenSafetyMargin == 0 {
		config.TokenSafetyMargin = 30 * time.Second
	}

	c := &DarajaClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		now: time.Now,
	}

	logger.Info("Daraja client initialized", "base_url", config.BaseURL, "shortcode", config.Shortcode, "timeout", config.Timeout)

	return c, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // seconds, sent as a string
}

// AccessToken returns a bearer token, reusing the cached one while it is
// still inside its validity window.
func (c *DarajaClient) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/oauth/v1/generate?grant_type=client_credentials")
	req.Header.SetMethod(fasthttp.MethodGet)
	basic := base64.StdEncoding.EncodeToString([]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	if err := c.do(ctx, req, resp); err != nil {
		if errors.Is(err, ErrUpstreamTimeout) {
			return "", fmt.Errorf("%w: token request: %v", ErrUpstreamAuth, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUpstreamAuth, resp.StatusCode())
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return "", fmt.Errorf("%w: malformed token response: %v", ErrUpstreamAuth, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUpstreamAuth)
	}

	validity := 3600
	if v, err := strconv.Atoi(tr.ExpiresIn); err == nil && v > 0 {
		validity = v
	}

	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(validity)*time.Second - c.config.TokenSafetyMargin)

	logger.Debug("acquired provider access token", "valid_seconds", validity)

	return c.token, nil
}

// Password derives the STK push password exactly as the provider requires:
// base64(shortcode + passkey + timestamp). The derivation must match the
// provider bit-for-bit or the request is rejected.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

type STKPushRequest struct {
	Amount           int64  // whole currency units, pre-rounded by caller
	PhoneNumber      string // normalized 254XXXXXXXXX
	AccountReference string
	Description      string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush asks the provider to prompt the customer's device for payment
// authorization. The result arrives later on the callback webhook.
func (c *DarajaClient) STKPush(ctx context.Context, p *STKPushRequest) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(TimestampFormat)
	body := map[string]interface{}{
		"BusinessShortCode": c.config.Shortcode,
		"Password":          Password(c.config.Shortcode, c.config.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            p.Amount,
		"PartyA":            p.PhoneNumber,
		"PartyB":            c.config.Shortcode,
		"PhoneNumber":       p.PhoneNumber,
		"CallBackURL":       c.config.CallbackURL,
		"AccountReference":  p.AccountReference,
		"TransactionDesc":   p.Description,
	}

	var out STKPushResponse
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body, &out); err != nil {
		return nil, err
	}

	logger.Info("STK push accepted by provider",
		"merchant_request_id", out.MerchantRequestID,
		"checkout_request_id", out.CheckoutRequestID)

	return &out, nil
}

type B2CRequest struct {
	Amount      int64
	PhoneNumber string
	Remarks     string
	Occasion    string
}

type B2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// B2CPayment issues an outbound disbursement to a customer's phone.
func (c *DarajaClient) B2CPayment(ctx context.Context, p *B2CRequest) (*B2CResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"InitiatorName":      c.config.InitiatorName,
		"SecurityCredential": c.config.SecurityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             p.Amount,
		"PartyA":             c.config.Shortcode,
		"PartyB":             p.PhoneNumber,
		"Remarks":            p.Remarks,
		"QueueTimeOutURL":    c.config.CallbackURL + "/timeout",
		"ResultURL":          c.config.CallbackURL + "/b2c",
		"Occasion":           p.Occasion,
	}

	var out B2CResponse
	if err := c.postJSON(ctx, "/mpesa/b2c/v1/paymentrequest", token, body, &out); err != nil {
		return nil, err
	}

	logger.Info("B2C payment accepted by provider", "conversation_id", out.ConversationID)

	return &out, nil
}

func (c *DarajaClient) postJSON(ctx context.Context, path, token string, body interface{}, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(reqBody)

	if err := c.do(ctx, req, resp); err != nil {
		return err
	}

	statusCode := resp.StatusCode()
	if statusCode == fasthttp.StatusUnauthorized || statusCode == fasthttp.StatusForbidden {
		// Cached token may have been revoked; drop it so the next call
		// re-authenticates.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return fmt.Errorf("%w: status %d, body: %s", ErrUpstreamAuth, statusCode, resp.Body())
	}
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func (c *DarajaClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = c.now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	return nil
}

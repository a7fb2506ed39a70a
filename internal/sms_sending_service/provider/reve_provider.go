package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultReveBaseURL is the public Reve SMS endpoint.
const DefaultReveBaseURL = "https://smpp.revesms.com:7790"

// messageTypeUnicode is the only type the portal sends; Bengali text needs it.
const messageTypeUnicode = "3"

var gatewayRequestDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "sms_sending",
		Name:      "provider_request_duration_seconds",
		Help:      "Duration of HTTP requests to SMS providers.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"provider_name", "endpoint"},
)

// ReveSMSProvider talks to the Reve SMS HTTP gateway. Every call is a GET
// with credentials in the query string.
type ReveSMSProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewReveSMSProvider(logger *slog.Logger, baseURL string, httpClient *http.Client) *ReveSMSProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultReveBaseURL
	}
	return &ReveSMSProvider{
		logger:     logger.With("provider", "reve"),
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// reveContent is one element of the bulk "content" array. Field order is part
// of the wire format.
type reveContent struct {
	CallerID       string `json:"callerID"`
	ToUser         string `json:"toUser"`
	MessageContent string `json:"messageContent"`
}

// BuildBulkURL renders the /send request for a batch:
//
//	{base}/send?apikey=K&secretkey=S&type=3&content=<json>[&clientid=C]
func BuildBulkURL(baseURL string, req BulkRequest) (string, error) {
	content, err := marshalContent([]reveContent{{
		CallerID:       req.Credentials.CallerID,
		ToUser:         strings.Join(req.Phones, ","),
		MessageContent: req.Message,
	}})
	if err != nil {
		return "", err
	}

	var q queryBuilder
	q.add("apikey", req.Credentials.APIKey)
	q.add("secretkey", req.Credentials.SecretKey)
	q.add("type", messageTypeUnicode)
	q.add("content", content)
	if strings.TrimSpace(req.Credentials.ClientID) != "" {
		q.add("clientid", req.Credentials.ClientID)
	}
	return strings.TrimRight(baseURL, "/") + "/send?" + q.String(), nil
}

// BuildDirectURL renders the /sendtext request for a single recipient:
//
//	{base}/sendtext?apikey=K&secretkey=S&callerID=I&toUser=N&messageContent=M&type=3[&clientid=C]
func BuildDirectURL(baseURL string, req DirectRequest) string {
	var q queryBuilder
	q.add("apikey", req.Credentials.APIKey)
	q.add("secretkey", req.Credentials.SecretKey)
	q.add("callerID", req.Credentials.CallerID)
	q.add("toUser", req.Phone)
	q.add("messageContent", req.Message)
	q.add("type", messageTypeUnicode)
	if strings.TrimSpace(req.Credentials.ClientID) != "" {
		q.add("clientid", req.Credentials.ClientID)
	}
	return strings.TrimRight(baseURL, "/") + "/sendtext?" + q.String()
}

// marshalContent encodes like JSON.stringify: no HTML escaping, no trailing newline.
func marshalContent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode gateway content: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (p *ReveSMSProvider) SendBulk(ctx context.Context, req BulkRequest) error {
	apiURL, err := BuildBulkURL(p.baseURL, req)
	if err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Sending bulk batch to Reve", "tenant_id", req.TenantID, "batch_index", req.BatchIndex, "recipients", len(req.Phones))
	return p.do(ctx, "send", apiURL)
}

func (p *ReveSMSProvider) SendDirect(ctx context.Context, req DirectRequest) error {
	p.logger.DebugContext(ctx, "Sending direct message to Reve", "to", req.Phone)
	return p.do(ctx, "sendtext", BuildDirectURL(p.baseURL, req))
}

// do issues the GET and drains the body. The gateway's reply is not parsed;
// only transport failures and non-2xx statuses are reported.
func (p *ReveSMSProvider) do(ctx context.Context, endpoint, apiURL string) error {
	timer := prometheus.NewTimer(gatewayRequestDurationHist.WithLabelValues(p.GetName(), endpoint))
	defer timer.ObserveDuration()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrGatewayDispatch, err)
	}
	httpReq.Header.Set("Cache-Control", "no-cache")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayDispatch, err)
	}
	defer httpResp.Body.Close()
	_, _ = io.Copy(io.Discard, httpResp.Body)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrGatewayDispatch, endpoint, httpResp.StatusCode)
	}
	return nil
}

func (p *ReveSMSProvider) GetName() string {
	return "reve"
}

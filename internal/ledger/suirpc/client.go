// Package suirpc reads loyalty events and objects from a Sui full node over
// JSON-RPC.
package suirpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
)

// ErrObjectNotFound is returned when sui_getObject reports a missing object.
var ErrObjectNotFound = errors.New("sui object not found")

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("sui rpc error %d: %s", e.Code, e.Message)
}

// Client talks to one full node.
type Client struct {
	url          string
	filter       ledger.Filter
	merchantType string
	registryType string
	maxPages     int
	http         *http.Client
	logger       *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from the ledger section of the config.
func New(conf config.LedgerConf, opts ...Option) *Client {
	c := &Client{
		url:          conf.RPCURL,
		filter:       ledger.Filter{Package: conf.PackageID, Module: conf.Module},
		merchantType: conf.MerchantType,
		registryType: conf.RegistryType,
		maxPages:     conf.MaxPages,
		http:         &http.Client{Timeout: time.Duration(conf.TimeoutMs) * time.Millisecond},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("sui rpc call", "method", method, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%s: %w", method, rr.Error)
	}
	if err := json.Unmarshal(rr.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

type eventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

func (id eventID) String() string { return id.TxDigest + ":" + id.EventSeq }

func parseCursor(s string) (*eventID, error) {
	if s == "" {
		return nil, nil
	}
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return nil, fmt.Errorf("bad event cursor %q", s)
	}
	return &eventID{TxDigest: s[:i], EventSeq: s[i+1:]}, nil
}

type suiEvent struct {
	ID          eventID        `json:"id"`
	PackageID   string         `json:"packageId"`
	Module      string         `json:"transactionModule"`
	Sender      string         `json:"sender"`
	Type        string         `json:"type"`
	ParsedJSON  map[string]any `json:"parsedJson"`
	TimestampMs string         `json:"timestampMs"`
}

type eventPage struct {
	Data        []suiEvent `json:"data"`
	NextCursor  *eventID   `json:"nextCursor"`
	HasNextPage bool       `json:"hasNextPage"`
}

// QueryEvents implements ledger.Source with suix_queryEvents. An empty
// q.Filter uses the configured package and module.
func (c *Client) QueryEvents(ctx context.Context, q ledger.Query) (ledger.Page, error) {
	f := q.Filter
	if f.Package == "" {
		f = c.filter
	}
	cursor, err := parseCursor(q.Cursor)
	if err != nil {
		return ledger.Page{}, err
	}
	filter := map[string]any{"MoveModule": map[string]string{"package": f.Package, "module": f.Module}}

	var page eventPage
	if err := c.call(ctx, "suix_queryEvents", &page, filter, cursor, q.Limit, q.Order != ledger.Ascending); err != nil {
		return ledger.Page{}, err
	}

	out := ledger.Page{Events: make([]event.RawEvent, 0, len(page.Data)), HasMore: page.HasNextPage}
	if page.NextCursor != nil {
		out.NextCursor = page.NextCursor.String()
	}
	for _, e := range page.Data {
		ms, _ := strconv.ParseInt(e.TimestampMs, 10, 64)
		out.Events = append(out.Events, event.RawEvent{
			ID:        e.ID.String(),
			Type:      e.Type,
			Sender:    e.Sender,
			Fields:    e.ParsedJSON,
			Timestamp: time.UnixMilli(ms).UTC(),
		})
	}
	return out, nil
}

type objectContent struct {
	DataType string         `json:"dataType"`
	Type     string         `json:"type"`
	Fields   map[string]any `json:"fields"`
}

type objectData struct {
	ObjectID string         `json:"objectId"`
	Content  *objectContent `json:"content"`
}

type objectResponse struct {
	Data  *objectData `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// FetchName implements resolve.Fetcher: it reads the "name" field of an object.
func (c *Client) FetchName(ctx context.Context, id string) (string, error) {
	var resp objectResponse
	if err := c.call(ctx, "sui_getObject", &resp, id, map[string]bool{"showContent": true}); err != nil {
		return "", err
	}
	if resp.Error != nil || resp.Data == nil {
		return "", fmt.Errorf("%s: %w", id, ErrObjectNotFound)
	}
	if resp.Data.Content == nil {
		return "", fmt.Errorf("%s: object has no content", id)
	}
	name, _ := resp.Data.Content.Fields["name"].(string)
	if name == "" {
		return "", fmt.Errorf("%s: object has no name field", id)
	}
	return name, nil
}

type ownedPage struct {
	Data        []objectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// ListEntities implements ledger.EntityLister by listing merchant capability
// objects. It returns nothing when no merchant type is configured. Like
// ledger.FetchAll it reads at most max_pages pages, and it stops early when
// the node hands back the cursor it was just given.
func (c *Client) ListEntities(ctx context.Context) ([]ledger.Entity, error) {
	if c.merchantType == "" {
		return nil, nil
	}
	query := map[string]any{
		"filter":  map[string]string{"StructType": c.merchantType},
		"options": map[string]bool{"showContent": true},
	}
	var (
		out    []ledger.Entity
		cursor *string
	)
	for n := 0; c.maxPages <= 0 || n < c.maxPages; n++ {
		var page ownedPage
		if err := c.call(ctx, "suix_getOwnedObjects", &page, c.filter.Package, query, cursor, nil); err != nil {
			return nil, err
		}
		for _, o := range page.Data {
			if o.Data == nil {
				continue
			}
			e := ledger.Entity{ID: o.Data.ObjectID, Name: "Unknown Merchant"}
			if o.Data.Content != nil {
				fields := o.Data.Content.Fields
				if s, _ := fields["name"].(string); s != "" {
					e.Name = s
				}
				e.Description, _ = fields["description"].(string)
				if s, _ := fields["total_issued"].(string); s != "" {
					e.TotalIssued, _ = strconv.ParseUint(s, 10, 64)
				}
			}
			out = append(out, e)
		}
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		if cursor != nil && *cursor == *page.NextCursor {
			c.logger.Warn("sui node repeated owned-objects cursor", "cursor", *cursor)
			return out, nil
		}
		cursor = page.NextCursor
	}
	return out, nil
}

// ReadRegistry implements ledger.RegistryReader. It reads the first object
// of the configured registry type owned by the package.
func (c *Client) ReadRegistry(ctx context.Context) (ledger.Registry, bool, error) {
	if c.registryType == "" {
		return ledger.Registry{}, false, nil
	}
	query := map[string]any{
		"filter":  map[string]string{"StructType": c.registryType},
		"options": map[string]bool{"showContent": true},
	}
	var page ownedPage
	if err := c.call(ctx, "suix_getOwnedObjects", &page, c.filter.Package, query, nil, 1); err != nil {
		return ledger.Registry{}, false, err
	}
	if len(page.Data) == 0 || page.Data[0].Data == nil {
		return ledger.Registry{}, false, nil
	}
	obj := page.Data[0].Data
	if obj.Content == nil {
		return ledger.Registry{}, false, fmt.Errorf("registry %s: object has no content", obj.ObjectID)
	}
	platform := structFields(obj.Content.Fields, "platform_metrics")
	revenue := structFields(obj.Content.Fields, "revenue_tracking")
	return ledger.Registry{
		TotalTransactions: int(number(platform, "total_transactions")),
		TotalUsers:        int(number(platform, "total_users")),
		TotalMerchants:    int(number(platform, "total_merchants")),
		RewardsRedeemed:   int(number(platform, "total_rewards_redeemed")),
		GrowthPercent:     number(platform, "platform_growth_rate"),
		MerchantFees:      number(revenue, "total_merchant_fees"),
	}, true, nil
}

// structFields unwraps a nested Move struct ({"type": ..., "fields": {...}}).
func structFields(fields map[string]any, key string) map[string]any {
	nested, _ := fields[key].(map[string]any)
	inner, _ := nested["fields"].(map[string]any)
	return inner
}

// number reads a Move integer, which the node renders as a string for u64
// and wider, or as a JSON number for smaller types.
func number(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

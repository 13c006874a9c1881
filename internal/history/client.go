package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/observability"
	"github.com/medisync/realtime/internal/protocol"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ErrUnexpectedStatus = errors.New("history: unexpected status")

const maxBody = 8 << 20

// Client reads stored conversations from the messaging REST API:
// GET {base}/api/messages/{userID}.
type Client struct {
	base  string
	http  *http.Client
	codec *protocol.Codec
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  httpClient,
		codec: protocol.NewCodec(),
	}
}

// Fetch returns every stored message involving userID. The body may be a bare
// array or an object with a "messages" array; entries that do not parse are
// skipped.
func (c *Client) Fetch(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	ctx, span := observability.StartSpan(ctx, "history.Fetch", attribute.String("user.id", userID))
	defer span.End()
	log := observability.GetLogger(ctx)

	endpoint := c.base + "/api/messages/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("history: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("history: read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("history: %w", protocol.ErrMalformedFrame)
	}

	list := gjson.ParseBytes(body)
	if list.IsObject() {
		list = list.Get("messages")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("history: %w: no message list", protocol.ErrMalformedFrame)
	}

	var out []domain.ChatMessage
	list.ForEach(func(_, item gjson.Result) bool {
		m, err := c.codec.DecodeMessage([]byte(item.Raw))
		if err != nil {
			log.Warn("history: skipping malformed entry", zap.String("user_id", userID), zap.Error(err))
			return true
		}
		out = append(out, m)
		return true
	})
	return out, nil
}

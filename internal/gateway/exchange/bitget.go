package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"aitrader/internal/gateway/notifier"
	"aitrader/internal/logger"
	"aitrader/internal/pkg/circuit"
)

const (
	defaultBaseURL = "https://api.bitget.com"
	marginCoin     = "USDT"
)

// BitgetConfig carries credentials and the retry policy.
type BitgetConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string

	Timeout    time.Duration // per attempt, default 10s
	MaxRetries int           // attempts per call, default 3
	Backoff    time.Duration // fixed pause between attempts, default 1s
}

func (c BitgetConfig) withDefaults() BitgetConfig {
	out := c
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.BaseURL == "" {
		out.BaseURL = defaultBaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.Backoff <= 0 {
		out.Backoff = time.Second
	}
	return out
}

// Bitget implements Gateway against the Bitget mix (futures) REST API.
// Every call retries up to MaxRetries with a fixed backoff; once the retry
// budget is exhausted the failure is escalated as a CRITICAL notification
// and the breaker counts it toward opening.
type Bitget struct {
	cfg     BitgetConfig
	client  *http.Client
	breaker *circuit.Breaker
	notify  notifier.Notifier

	nowFn func() time.Time
}

func NewBitget(cfg BitgetConfig, notify notifier.Notifier) *Bitget {
	final := cfg.withDefaults()
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Bitget{
		cfg:     final,
		client:  &http.Client{Timeout: final.Timeout},
		breaker: circuit.NewBreaker("bitget", 5, 2*time.Minute),
		notify:  notify,
		nowFn:   time.Now,
	}
}

func (b *Bitget) AvailableBalance(ctx context.Context, symbol string) (float64, error) {
	endpoint := "/api/mix/v1/account/account"
	query := fmt.Sprintf("symbol=%s&marginCoin=%s", strings.ToUpper(symbol), marginCoin)
	body, err := b.call(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "data.availableBalance").Float(), nil
}

func (b *Bitget) PlaceOrder(ctx context.Context, req OrderRequest) (*Fill, error) {
	endpoint := "/api/mix/v1/order/place-order"
	payload := map[string]any{
		"symbol":     strings.ToUpper(req.Symbol),
		"marginCoin": marginCoin,
		"size":       strconv.FormatFloat(req.Size, 'f', -1, 64),
		"side":       req.Side,
		"orderType":  "market",
		"force":      "gtc",
		"leverage":   strconv.Itoa(req.Leverage),
	}
	if req.StopLoss > 0 {
		payload["presetStopLossPrice"] = strconv.FormatFloat(req.StopLoss, 'f', -1, 64)
	}
	if req.TakeProfit > 0 {
		payload["presetTakeProfitPrice"] = strconv.FormatFloat(req.TakeProfit, 'f', -1, 64)
	}
	body, err := b.call(ctx, http.MethodPost, endpoint, "", payload)
	if err != nil {
		return nil, err
	}
	orderID := gjson.GetBytes(body, "data.orderId").String()
	if orderID == "" {
		return nil, fmt.Errorf("bitget: order rejected: %s", gjson.GetBytes(body, "msg").String())
	}
	filled := gjson.GetBytes(body, "data.priceAvg").Float()
	if filled <= 0 {
		filled = req.Price
	}
	return &Fill{OrderID: orderID, FilledPrice: filled}, nil
}

// call performs one signed request under the retry policy.
func (b *Bitget) call(ctx context.Context, method, endpoint, query string, payload map[string]any) ([]byte, error) {
	if !b.breaker.Allow() {
		return nil, fmt.Errorf("bitget: circuit open, call rejected")
	}

	var reqBody []byte
	if payload != nil {
		reqBody, _ = json.Marshal(payload)
	}
	url := b.cfg.BaseURL + endpoint
	if query != "" {
		url += "?" + query
	}

	var lastErr error
	for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return nil, b.fail(method, endpoint, lastErr)
			case <-time.After(b.cfg.Backoff):
			}
		}
		body, err := b.doRequest(ctx, method, url, endpoint, query, reqBody)
		if err != nil {
			lastErr = err
			logger.Warnf("bitget %s %s attempt %d/%d failed: %v", method, endpoint, attempt+1, b.cfg.MaxRetries, err)
			continue
		}
		b.breaker.RecordSuccess()
		return body, nil
	}
	return nil, b.fail(method, endpoint, lastErr)
}

func (b *Bitget) fail(method, endpoint string, err error) error {
	b.breaker.RecordFailure()
	b.notify.Notify("api_failure",
		fmt.Sprintf("Bitget %s %s failed after %d attempts", method, endpoint, b.cfg.MaxRetries),
		notifier.LevelCritical,
		map[string]any{"error": fmt.Sprintf("%v", err)})
	return fmt.Errorf("bitget %s %s: %w", method, endpoint, err)
}

func (b *Bitget) doRequest(ctx context.Context, method, url, endpoint, query string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	ts := strconv.FormatInt(b.nowFn().UnixMilli(), 10)
	var signPayload string
	if method == http.MethodGet {
		signPayload = query
	} else {
		signPayload = string(body)
	}
	req.Header.Set("ACCESS-KEY", b.cfg.APIKey)
	req.Header.Set("ACCESS-SIGN", b.sign(method, endpoint, signPayload, ts))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", b.cfg.Passphrase)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(data, 200))
	}
	if code := gjson.GetBytes(data, "code").String(); code != "" && code != "00000" {
		return nil, fmt.Errorf("api code=%s msg=%s", code, gjson.GetBytes(data, "msg").String())
	}
	return data, nil
}

// sign builds the HMAC-SHA256 hex signature over ts+method+endpoint+payload.
func (b *Bitget) sign(method, endpoint, payload, ts string) string {
	message := ts + strings.ToUpper(method) + endpoint + payload
	mac := hmac.New(sha256.New, []byte(b.cfg.APISecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}

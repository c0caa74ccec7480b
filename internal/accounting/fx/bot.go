package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider fetches a rate for a currency on a date from an external source.
type Provider interface {
	Fetch(ctx context.Context, currency string, date time.Time) (Snapshot, error)
}

// DefaultBOTURL is the Bank of Thailand daily average exchange rate endpoint.
const DefaultBOTURL = "https://apigw1.bot.or.th/bot/public/Stat-ExchangeRate/v2/DAILY_AVG_EXG_RATE/"

// BOTClient reads the Bank of Thailand daily weighted-average interbank rates.
// Rates are not published on weekends and Thai holidays, so the client looks
// back a few days and uses the latest published mid rate.
type BOTClient struct {
	baseURL  string
	clientID string
	lookback int
	http     *http.Client
}

// NewBOTClient constructs a client. An empty baseURL uses DefaultBOTURL.
func NewBOTClient(baseURL, clientID string, httpClient *http.Client) *BOTClient {
	if baseURL == "" {
		baseURL = DefaultBOTURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &BOTClient{baseURL: baseURL, clientID: clientID, lookback: 7, http: httpClient}
}

type botResponse struct {
	Result struct {
		Success string `json:"success"`
		Data    struct {
			DataDetail []struct {
				Period     string `json:"period"`
				CurrencyID string `json:"currency_id"`
				MidRate    string `json:"mid_rate"`
			} `json:"data_detail"`
		} `json:"data"`
		Error []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
}

// Fetch returns the latest mid rate published on or before date.
func (c *BOTClient) Fetch(ctx context.Context, currency string, date time.Time) (Snapshot, error) {
	day := Day(date)
	q := url.Values{}
	q.Set("start_period", day.AddDate(0, 0, -c.lookback).Format(time.DateOnly))
	q.Set("end_period", day.Format(time.DateOnly))
	q.Set("currency", currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set("X-IBM-Client-Id", c.clientID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fx: bot request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("fx: bot status %d", resp.StatusCode)
	}
	var body botResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Snapshot{}, fmt.Errorf("fx: bot decode: %w", err)
	}
	if len(body.Result.Error) > 0 {
		return Snapshot{}, fmt.Errorf("fx: bot error %s: %s", body.Result.Error[0].Code, body.Result.Error[0].Message)
	}
	var (
		bestPeriod time.Time
		bestRate   decimal.Decimal
		found      bool
	)
	for _, row := range body.Result.Data.DataDetail {
		if !strings.EqualFold(row.CurrencyID, currency) || strings.TrimSpace(row.MidRate) == "" {
			continue
		}
		period, err := time.Parse(time.DateOnly, row.Period)
		if err != nil || period.After(day) {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(row.MidRate))
		if err != nil || !rate.IsPositive() {
			continue
		}
		if !found || period.After(bestPeriod) {
			bestPeriod, bestRate, found = period, rate, true
		}
	}
	if !found {
		return Snapshot{}, ErrRateNotFound
	}
	return Snapshot{From: currency, To: BaseCurrency, Rate: bestRate, Date: day, Source: SourceBOT}, nil
}

// Package zerion is a minimal client for the Zerion API, covering the
// wallet portfolio and position endpoints the demo server exposes.
package zerion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/aeither/x402-starter-kit/retry"
)

// DefaultBaseURL is the public Zerion API endpoint.
const DefaultBaseURL = "https://api.zerion.io"

const requestTimeout = 15 * time.Second

// Client calls the Zerion API with Basic auth, the API key as username and
// an empty password.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient creates a Zerion client with the default endpoint.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: requestTimeout},
	}
}

// Portfolio is the aggregated value of a wallet.
type Portfolio struct {
	TotalValueUSD  float64            `json:"totalValueUSD"`
	Change24hPct   float64            `json:"change24hPct"`
	ChainValuesUSD map[string]float64 `json:"chainValuesUSD"`
}

// Position is one fungible holding of a wallet.
type Position struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Chain    string  `json:"chain"`
	Quantity float64 `json:"quantity"`
	ValueUSD float64 `json:"valueUSD"`
}

// portfolioDocument mirrors the JSON:API shape of /v1/wallets/{addr}/portfolio.
type portfolioDocument struct {
	Data struct {
		Attributes struct {
			Total struct {
				Positions float64 `json:"positions"`
			} `json:"total"`
			Changes struct {
				Percent1d float64 `json:"percent_1d"`
			} `json:"changes"`
			PositionsDistributionByChain map[string]float64 `json:"positions_distribution_by_chain"`
		} `json:"attributes"`
	} `json:"data"`
}

// positionsDocument mirrors the JSON:API shape of /v1/wallets/{addr}/positions.
type positionsDocument struct {
	Data []struct {
		Attributes struct {
			Name     string `json:"name"`
			Quantity struct {
				Float float64 `json:"float"`
			} `json:"quantity"`
			Value        *float64 `json:"value"`
			FungibleInfo struct {
				Symbol string `json:"symbol"`
			} `json:"fungible_info"`
		} `json:"attributes"`
		Relationships struct {
			Chain struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"chain"`
		} `json:"relationships"`
	} `json:"data"`
}

// GetPortfolio fetches the aggregated portfolio of a wallet address.
func (c *Client) GetPortfolio(ctx context.Context, address string) (*Portfolio, error) {
	var doc portfolioDocument
	path := fmt.Sprintf("/v1/wallets/%s/portfolio", url.PathEscape(address))
	if err := c.get(ctx, path, &doc); err != nil {
		return nil, err
	}

	return &Portfolio{
		TotalValueUSD:  doc.Data.Attributes.Total.Positions,
		Change24hPct:   doc.Data.Attributes.Changes.Percent1d,
		ChainValuesUSD: doc.Data.Attributes.PositionsDistributionByChain,
	}, nil
}

// GetPositions fetches the fungible positions of a wallet address, sorted
// by USD value descending. Positions without a value are skipped.
func (c *Client) GetPositions(ctx context.Context, address string) ([]Position, error) {
	var doc positionsDocument
	path := fmt.Sprintf("/v1/wallets/%s/positions?filter[positions]=only_simple&currency=usd", url.PathEscape(address))
	if err := c.get(ctx, path, &doc); err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(doc.Data))
	for _, item := range doc.Data {
		if item.Attributes.Value == nil {
			continue
		}
		positions = append(positions, Position{
			Name:     item.Attributes.Name,
			Symbol:   item.Attributes.FungibleInfo.Symbol,
			Chain:    item.Relationships.Chain.Data.ID,
			Quantity: item.Attributes.Quantity.Float,
			ValueUSD: *item.Attributes.Value,
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ValueUSD > positions[j].ValueUSD
	})
	return positions, nil
}

// statusError lets the retry predicate distinguish server-side failures.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("zerion: unexpected status %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	// Network-level failures are worth another try.
	return true
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	body, err := retry.WithDefaults(ctx, isTransient, func() ([]byte, error) {
		return c.fetch(ctx, path)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("zerion: failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("zerion: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.APIKey+":")))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zerion: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("zerion: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: snippet(body)}
	}
	return body, nil
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}

// Package rest is the client for the exchange's REST surface: the paged
// listings and snapshots the mirror reconciles against.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"marketmirror/internal/model"
)

// DefaultPageLimit matches the exchange's maximum page size.
const DefaultPageLimit = 200

// Config holds the client's connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	PageLimit int
}

// Client talks to the exchange REST API. Safe for concurrent use.
type Client struct {
	base      *url.URL
	apiKey    string
	pageLimit int
	httpc     *http.Client
	log       zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	return &Client{
		base:      base,
		apiKey:    cfg.APIKey,
		pageLimit: cfg.PageLimit,
		httpc:     &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}, nil
}

// pagedEnvelope is the common shape of list responses; Meta.Next carries
// the URL of the following page, null on the last one.
type pagedEnvelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Next *string `json:"next"`
	} `json:"meta"`
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, rawURL string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if authed {
		req.Header.Set("Authorization", "JWT "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// listAll walks a paged listing from its first page to the last, handing
// each page's raw data array to fn.
func (c *Client) listAll(ctx context.Context, path string, query url.Values, authed bool,
	fn func(data json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(c.pageLimit))
	next := c.endpoint(path, query)
	for next != "" {
		var page pagedEnvelope
		if err := c.get(ctx, next, authed, &page); err != nil {
			return err
		}
		if err := fn(page.Data); err != nil {
			return err
		}
		if page.Meta.Next == nil {
			break
		}
		next = *page.Meta.Next
	}
	return nil
}

func decodePage[W any, M any](data json.RawMessage, convert func(*W) (M, error)) ([]M, error) {
	var records []W
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	out := make([]M, 0, len(records))
	for i := range records {
		m, err := convert(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListContracts returns the full contract catalog.
func (c *Client) ListContracts(ctx context.Context) ([]model.Contract, error) {
	var out []model.Contract
	err := c.listAll(ctx, "/trading/contracts", nil, false, func(data json.RawMessage) error {
		page, err := decodePage(data, (*wireContract).toModel)
		if err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	c.log.Debug().Int("contracts", len(out)).Msg("listed contracts")
	return out, nil
}

// GetContract retrieves one contract by id.
func (c *Client) GetContract(ctx context.Context, contractID int64) (model.Contract, error) {
	var envelope dataEnvelope
	path := fmt.Sprintf("/trading/contracts/%d", contractID)
	if err := c.get(ctx, c.endpoint(path, nil), false, &envelope); err != nil {
		return model.Contract{}, err
	}
	var w wireContract
	if err := json.Unmarshal(envelope.Data, &w); err != nil {
		return model.Contract{}, fmt.Errorf("decoding contract %d: %w", contractID, err)
	}
	return w.toModel()
}

// ListTradedContracts returns the contracts the account has history on.
func (c *Client) ListTradedContracts(ctx context.Context) ([]model.Contract, error) {
	var out []model.Contract
	err := c.listAll(ctx, "/trading/contracts/traded", nil, true, func(data json.RawMessage) error {
		page, err := decodePage(data, (*wireContract).toModel)
		if err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing traded contracts: %w", err)
	}
	return out, nil
}

// ListOpenOrders returns the trader's resting orders.
func (c *Client) ListOpenOrders(ctx context.Context) ([]model.Order, error) {
	var envelope dataEnvelope
	if err := c.get(ctx, c.endpoint("/trading/orders/open", nil), true, &envelope); err != nil {
		return nil, fmt.Errorf("listing open orders: %w", err)
	}
	var records []wireOrder
	if err := json.Unmarshal(envelope.Data, &records); err != nil {
		return nil, fmt.Errorf("decoding open orders: %w", err)
	}
	out := make([]model.Order, 0, len(records))
	for i := range records {
		out = append(out, records[i].toModel())
	}
	return out, nil
}

// ListPositions returns all of the trader's positions.
func (c *Client) ListPositions(ctx context.Context) ([]model.Position, error) {
	var out []model.Position
	err := c.listAll(ctx, "/trading/positions", nil, true, func(data json.RawMessage) error {
		page, err := decodePage(data, (*wirePosition).toModel)
		if err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	return out, nil
}

// ListPositionFills returns a position's complete fill history.
func (c *Client) ListPositionFills(ctx context.Context, positionID string) ([]model.Fill, error) {
	var out []model.Fill
	path := fmt.Sprintf("/trading/positions/%s/trades", url.PathEscape(positionID))
	err := c.listAll(ctx, path, nil, true, func(data json.RawMessage) error {
		page, err := decodePage(data, (*wireFill).toModel)
		if err != nil {
			return err
		}
		out = append(out, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing fills for position %s: %w", positionID, err)
	}
	return out, nil
}

// ListTransactions returns all ledger debits and credits.
func (c *Client) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	var out []model.Transaction
	err := c.listAll(ctx, "/funds/transactions", nil, true, func(data json.RawMessage) error {
		var records []wireTransaction
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decoding transactions: %w", err)
		}
		for i := range records {
			out = append(out, records[i].toModel())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return out, nil
}

// BookState fetches a full book snapshot for one contract.
func (c *Client) BookState(ctx context.Context, contractID int64) (model.BookSnapshot, error) {
	var envelope dataEnvelope
	path := fmt.Sprintf("/trading/contracts/%d/book-state", contractID)
	if err := c.get(ctx, c.endpoint(path, nil), true, &envelope); err != nil {
		return model.BookSnapshot{}, err
	}
	var w wireBookState
	if err := json.Unmarshal(envelope.Data, &w); err != nil {
		return model.BookSnapshot{}, fmt.Errorf("decoding book state for %d: %w", contractID, err)
	}
	if w.ContractID == 0 {
		w.ContractID = contractID
	}
	return w.toModel(), nil
}

// ListTrades streams the trades executed inside the window to fn, one page
// at a time.
func (c *Client) ListTrades(ctx context.Context, after, before time.Time,
	fn func([]model.Trade) error) error {
	query := url.Values{}
	query.Set("after_ts", after.UTC().Format(windowTimeLayout))
	query.Set("before_ts", before.UTC().Format(windowTimeLayout))
	err := c.listAll(ctx, "/trading/trades", query, true, func(data json.RawMessage) error {
		page, err := decodePage(data, (*wireTrade).toModel)
		if err != nil {
			return err
		}
		return fn(page)
	})
	if err != nil {
		return fmt.Errorf("listing trades: %w", err)
	}
	return nil
}

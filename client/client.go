// Package client is the HTTP consumer of a ledger instance's public API,
// used by the reconciler and by external tooling.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/nftsurface"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "nftsurface-client"
)

type Client struct {
	client   *http.Client
	cache    *cache.Cache
	endpoint string
}

func New(endpoint string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:   &httpClient,
		cache:    cache.New(10*time.Minute, 15*time.Minute),
		endpoint: strings.TrimSuffix(endpoint, "/"),
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) get(ctx context.Context, path string, response any) error {

	url := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

// GetWellKnown fetches the instance identity document. Cached; the signing
// domain of a deployed instance does not move.
func (c *Client) GetWellKnown(ctx context.Context) (nftsurface.WellKnownSurface, error) {

	cacheKey := "wellknown:" + c.endpoint
	x, found := c.cache.Get(cacheKey)
	if found {
		return x.(nftsurface.WellKnownSurface), nil
	}

	var wks nftsurface.WellKnownSurface
	err := c.get(ctx, "/.well-known/nftsurface", &wks)
	if err != nil {
		return nftsurface.WellKnownSurface{}, fmt.Errorf("failed to get well-known surface: %v", err)
	}

	c.cache.Set(cacheKey, wks, cache.DefaultExpiration)

	return wks, nil
}

// State returns the authoritative lifecycle view of one asset. Never cached;
// the reconciler depends on fresh reads.
func (c *Client) State(ctx context.Context, id uint64) (nftsurface.AssetState, error) {
	var state nftsurface.AssetState
	err := c.get(ctx, "/api/v1/asset/"+strconv.FormatUint(id, 10), &state)
	if err != nil {
		return nftsurface.AssetState{}, fmt.Errorf("failed to get asset state: %v", err)
	}
	return state, nil
}

type vacantResponse struct {
	AssetID uint64 `json:"assetId"`
	Vacant  bool   `json:"vacant"`
	Cause   string `json:"cause"`
}

// Vacant reports whether the id can still be issued, with the ledger's
// stated cause when it cannot.
func (c *Client) Vacant(ctx context.Context, id uint64) (bool, string, error) {
	var resp vacantResponse
	err := c.get(ctx, "/api/v1/asset/"+strconv.FormatUint(id, 10)+"/vacant", &resp)
	if err != nil {
		return false, "", fmt.Errorf("failed to query vacancy: %v", err)
	}
	return resp.Vacant, resp.Cause, nil
}

type supplyResponse struct {
	TotalSupply int64 `json:"totalSupply"`
}

func (c *Client) TotalSupply(ctx context.Context) (int64, error) {
	var resp supplyResponse
	err := c.get(ctx, "/api/v1/supply", &resp)
	if err != nil {
		return 0, fmt.Errorf("failed to get total supply: %v", err)
	}
	return resp.TotalSupply, nil
}

type floorResponse struct {
	Floor uint64 `json:"floor"`
}

func (c *Client) Floor(ctx context.Context) (uint64, error) {
	var resp floorResponse
	err := c.get(ctx, "/api/v1/floor", &resp)
	if err != nil {
		return 0, fmt.Errorf("failed to get floor: %v", err)
	}
	return resp.Floor, nil
}

package httpdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/integrations/directory"
	"github.com/cargaviva/freightcore/internal/models"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type profileResp struct {
	DriverID    uint64  `json:"driver_id"`
	Name        string  `json:"name"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
}

func (c *Client) GetProfile(ctx context.Context, driverID uint64) (directory.Profile, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return directory.Profile{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/profiles/%d", driverID)

	return c.fetch(ctx, u.String(), 0)
}

func (c *Client) GetFreightScopedProfile(ctx context.Context, freightID, callerID, driverID uint64) (directory.Profile, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return directory.Profile{}, errors.Wrap(err, "parse base url")
	}
	// The directory verifies the caller participates in the freight before
	// answering; we only forward who is asking.
	u.Path = fmt.Sprintf("/v1/freights/%d/participants/%d/profile", freightID, driverID)

	return c.fetch(ctx, u.String(), callerID)
}

func (c *Client) fetch(ctx context.Context, rawURL string, callerID uint64) (directory.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return directory.Profile{}, errors.Wrap(err, "new request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if callerID != 0 {
		req.Header.Set("X-Caller-Id", fmt.Sprintf("%d", callerID))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return directory.Profile{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		return directory.Profile{}, directory.ErrHidden
	case resp.StatusCode == http.StatusForbidden:
		return directory.Profile{}, models.ErrNotParticipant
	case resp.StatusCode/100 != 2:
		return directory.Profile{}, fmt.Errorf("directory http %d", resp.StatusCode)
	}

	var pr profileResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return directory.Profile{}, errors.Wrap(err, "decode profile")
	}
	return directory.Profile{
		DriverID:    pr.DriverID,
		Name:        pr.Name,
		Phone:       pr.Phone,
		CompanyName: pr.CompanyName,
	}, nil
}

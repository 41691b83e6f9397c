// Package identity is the HTTP client for the external identity service
// holding the permission matrix and the member directory. Only the query
// contracts are consumed here; role storage and the matrix itself live on
// the other side.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Member is a directory entry eligible for assignment.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Client talks to the identity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client for the given base URL. A nil httpClient
// gets a 5 second timeout default.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type permissionResponse struct {
	Allowed bool `json:"allowed"`
}

// HasPermission queries the permission matrix for an actor and action within
// an organization.
func (c *Client) HasPermission(ctx context.Context, actorID, organizationID, action string) (bool, error) {
	query := url.Values{}
	query.Set("actor", actorID)
	query.Set("organization", organizationID)
	query.Set("action", action)

	var body permissionResponse
	if err := c.get(ctx, "/permissions/check?"+query.Encode(), &body); err != nil {
		return false, err
	}
	return body.Allowed, nil
}

type membersResponse struct {
	Members []Member `json:"members"`
}

// EligibleMembers lists the members of an organization with planning
// visibility into the stable. Eligibility filtering happens on the identity
// side; callers treat the result as the complete candidate set.
func (c *Client) EligibleMembers(ctx context.Context, organizationID, stableID string) ([]Member, error) {
	path := fmt.Sprintf("/organizations/%s/stables/%s/members",
		url.PathEscape(organizationID), url.PathEscape(stableID))

	var body membersResponse
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Members, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("identity: base URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

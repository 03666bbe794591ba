package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/wavebreak/modbot/internal/config"
)

const (
	roleAssignmentsURL = "https://slack.com/api/admin.roles.entity.listAssignments"

	managerHTTPTimeout = 10 * time.Second
)

// Client wraps the Slack Web API behind the platform contract. Channel
// manager lookups go through an undocumented admin endpoint that needs a
// browser token and session cookie; when those are not configured the lookup
// degrades to an empty manager list.
type Client struct {
	api          *slack.Client
	httpClient   *http.Client
	browserToken string
	cookie       string
}

func New(api *slack.Client, cfg config.Config) *Client {
	return &Client{
		api:          api,
		httpClient:   &http.Client{Timeout: managerHTTPTimeout},
		browserToken: cfg.SlackBrowserToken,
		cookie:       cfg.SlackCookie,
	}
}

func (c *Client) DeleteMessage(ctx context.Context, channel, ts string) error {
	_, _, err := c.api.DeleteMessageContext(ctx, channel, ts)
	return err
}

func (c *Client) PostEphemeral(ctx context.Context, channel, user, threadTS, text string) error {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}
	_, err := c.api.PostEphemeralContext(ctx, channel, user, options...)
	return err
}

func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}
	_, _, err := c.api.PostMessageContext(ctx, channel, options...)
	return err
}

func (c *Client) KickFromChannel(ctx context.Context, channel, user string) error {
	return c.api.KickUserFromConversationContext(ctx, channel, user)
}

func (c *Client) IsAdmin(ctx context.Context, user string) (bool, error) {
	info, err := c.api.GetUserInfoContext(ctx, user)
	if err != nil {
		return false, fmt.Errorf("get user info: %w", err)
	}
	return info.IsAdmin || info.IsOwner, nil
}

func (c *Client) ChannelManagers(ctx context.Context, channel string) ([]string, error) {
	if c.browserToken == "" || c.cookie == "" {
		log.Trace("browser token or cookie not configured, skipping channel manager lookup")
		return nil, nil
	}

	form := url.Values{}
	form.Set("token", c.browserToken)
	form.Set("entity_id", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, roleAssignmentsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", "d="+c.cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var payload struct {
		OK              bool   `json:"ok"`
		Error           string `json:"error"`
		RoleAssignments []struct {
			Users []string `json:"users"`
		} `json:"role_assignments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("role assignments request failed: %s", payload.Error)
	}
	if len(payload.RoleAssignments) == 0 {
		return nil, nil
	}
	return payload.RoleAssignments[0].Users, nil
}

package ogsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
)

// Token represents an OAuth-compatible token structure.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"-"` // Ignore, always "Bearer"
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Auth holds the realtime API secrets served by /api/v1/ui/config.
type Auth struct {
	ChatAuth         string `json:"chat_auth"`
	NotificationAuth string `json:"notification_auth"`
	UserJWT          string `json:"user_jwt"`
}

// Client obtains and persists the credentials a Socket needs.
type Client struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Token               // Embedded
	Auth                // Embedded

	// Not to persist
	Username string `json:"-"`
	UserID   int64  `json:"-"`

	opts    []Option
	options options
}

// NewClient creates a Client instance with the given client ID and secret,
// Login() should be called for authentication.
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	c.setOptions(opts)
	return c
}

func (c *Client) setOptions(opts []Option) {
	c.opts = opts
	c.options = buildOptions(opts)
}

// Login authenticates the Client with the given username and password and
// fetches the realtime secrets. Connect can be called right after.
func (c *Client) Login(ctx context.Context, username, password string) error {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", c.ClientID)
	data.Set("client_secret", c.ClientSecret)
	data.Set("username", username)
	data.Set("password", password)
	if err := c.authenticate(ctx, data); err != nil {
		return err
	}
	return c.Identify(ctx)
}

// Save stores authenticated Client credentials into a file in JSON format.
// This is recommended practice right after logged in via Login() once.
func (c *Client) Save(secretFile string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(secretFile, data, 0600)
}

// LoadClient reads Client credentials from a JSON file previously written via
// Save(), refreshing and re-saving them when they are about to expire.
func LoadClient(ctx context.Context, secretFile string, opts ...Option) (*Client, error) {
	data, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, err
	}
	var c Client
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.setOptions(opts)

	// OGS access token is valid for 30 days, refresh if it's expiring in
	// 7 days.
	refreshed, err := c.MaybeRefresh(ctx, time.Hour*24*7)
	if err != nil {
		return nil, err
	}
	if refreshed {
		if err := c.Save(secretFile); err != nil {
			return nil, err
		}
	}

	if err := c.Identify(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// Identify verifies Client access token and populate Username & UserID fields.
func (c *Client) Identify(ctx context.Context) error {
	me, err := c.AboutMe(ctx)
	if err != nil {
		return err
	}
	c.Username = me.Username
	c.UserID = me.ID
	return nil
}

func (c *Client) refreshToken(ctx context.Context) error {
	if c.RefreshToken == "" {
		return fmt.Errorf("Client does not have a RefreshToken, login needed")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", c.RefreshToken)
	data.Set("client_id", c.ClientID)
	data.Set("client_secret", c.ClientSecret)
	return c.authenticate(ctx, data)
}

func (c *Client) authenticate(ctx context.Context, data url.Values) error {
	body, err := c.post(ctx, "/oauth2/token/", data)
	if err != nil {
		return fmt.Errorf("failed to request token: %w", err)
	}
	if err := json.Unmarshal(body, &c.Token); err != nil {
		return err
	}

	c.ExpiresAt = time.Now().Add(time.Duration(c.ExpiresIn) * time.Second)
	c.ExpiresIn = 0 // Unset to omit when persisting to file

	return c.FetchAuth(ctx)
}

// FetchAuth requests the chat, notification and JWT secrets used by the
// realtime API.
func (c *Client) FetchAuth(ctx context.Context) error {
	if err := c.Get(ctx, "/api/v1/ui/config/", nil, &c.Auth); err != nil {
		return fmt.Errorf("failed to request auth config: %w", err)
	}
	return nil
}

// MaybeRefresh validates the expiry of Client credentials and refresh
// credentials on demand, a true value is returned when refresh happened
// successfully. Save() is expected to persist the new credentials.
func (c *Client) MaybeRefresh(ctx context.Context, deadline time.Duration) (bool, error) {
	expiring := time.Now().Add(deadline).After(c.ExpiresAt)
	if expiring || c.Identify(ctx) != nil {
		c.options.logger.Info("Refreshing access token", zap.Time("expires_at", c.ExpiresAt))
		err := c.refreshToken(ctx)
		return err == nil, err
	}
	return false, nil
}

// Credentials returns the secrets a Socket authenticates with.
func (c *Client) Credentials() Credentials {
	return Credentials{
		AccessToken:      c.AccessToken,
		ChatAuth:         c.ChatAuth,
		NotificationAuth: c.NotificationAuth,
		UserJWT:          c.UserJWT,
		UserID:           c.UserID,
		Username:         c.Username,
	}
}

// Connect opens an authenticated Socket with the Client's options followed by
// opts.
func (c *Client) Connect(ctx context.Context, handler Handler, opts ...Option) (*Socket, error) {
	all := append(append([]Option(nil), c.opts...), opts...)
	s := NewSocket(c.Credentials(), handler, all...)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

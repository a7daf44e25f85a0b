package ogsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// OGS REST APIs are implemented based on https://apidocs.online-go.com

// AboutMe returns the profile of the authenticated user.
func (c *Client) AboutMe(ctx context.Context) (*User, error) {
	res := User{}
	if err := c.Get(ctx, "/api/v1/me", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Get sends a GET request and decodes the JSON response into ptr.
func (c *Client) Get(ctx context.Context, uri string, params url.Values, ptr any) error {
	if reflect.ValueOf(ptr).Kind() != reflect.Ptr {
		return fmt.Errorf("ptr argument must be a pointer, got %T", ptr)
	}

	body, err := c.get(ctx, uri, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, ptr)
}

func (c *Client) get(ctx context.Context, uri string, params url.Values) ([]byte, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	url := c.options.config.BaseURL + uri
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.URL.RawQuery = params.Encode()
	return c.do(req)
}

func (c *Client) post(ctx context.Context, uri string, data url.Values) ([]byte, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	url := c.options.config.BaseURL + uri
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := c.options.config.RequestTimeout; t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	c.options.logger.Debug("REST request", zap.String("method", req.Method), zap.String("path", req.URL.Path))
	resp, err := c.options.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s -> %s", req.Method, req.URL.Path, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s -> %w", req.Method, req.URL.Path, err)
	}
	return body, nil
}

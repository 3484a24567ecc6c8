package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"order_core/pkg/utils"
)

type apiClient struct {
	baseURL string
	secret  string
	http    *http.Client
}

type apiResponse struct {
	Status  int
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAPIClient(baseURL, secret string, conns int) *apiClient {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = conns
	t.MaxIdleConnsPerHost = conns
	t.MaxConnsPerHost = conns
	return &apiClient{
		baseURL: baseURL + "/api/v1",
		secret:  secret,
		http:    &http.Client{Transport: t, Timeout: 10 * time.Second},
	}
}

func (c *apiClient) token(userID string, role int) (string, error) {
	return utils.GenerateToken(c.secret, userID, role, time.Hour)
}

// call 以 userID 身份调用接口，out 非空时解析 data
func (c *apiClient) call(method, path, userID string, role int, body, out interface{}) (*apiResponse, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := c.token(userID, role)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	r := &apiResponse{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("decode %s %s (%d): %w", method, path, resp.StatusCode, err)
	}
	if out != nil && r.Code == 0 {
		if err := json.Unmarshal(r.Data, out); err != nil {
			return r, err
		}
	}
	return r, nil
}

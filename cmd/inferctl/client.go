package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"inferd/pkg/types"
)

// client is a thin HTTP wrapper over the daemon API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		// Generation can run long; rely on context for cancellation.
		http: &http.Client{Timeout: 0},
	}
}

func (c *client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeErr(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeErr(resp *http.Response) error {
	var er types.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er); err == nil && er.Error != "" {
		return fmt.Errorf("%s (http %d)", er.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon returned http %d", resp.StatusCode)
}

func (c *client) generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	resp, err := c.postJSON(ctx, "/generate", req)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.GenerateResponse{}, decodeErr(resp)
	}
	var out types.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.GenerateResponse{}, err
	}
	return out, nil
}

// generateStream prints tokens to w as they arrive and a summary line when
// the stream terminates.
func (c *client) generateStream(ctx context.Context, req types.GenerateRequest, w io.Writer) error {
	resp, err := c.postJSON(ctx, "/generate/stream", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeErr(resp)
	}
	start := time.Now()
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg struct {
			Token        string `json:"token"`
			Done         bool   `json:"done"`
			Error        string `json:"error"`
			Tokens       int    `json:"tokens"`
			FinishReason string `json:"finish_reason"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			return fmt.Errorf("malformed stream line: %w", err)
		}
		if msg.Done {
			if msg.Error != "" {
				fmt.Fprintln(w)
				return fmt.Errorf("generation failed: %s", msg.Error)
			}
			fmt.Fprintf(w, "\n[%d tokens in %s, finish=%s]\n", msg.Tokens, time.Since(start).Round(time.Millisecond), msg.FinishReason)
			return nil
		}
		fmt.Fprint(w, msg.Token)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream ended without a terminal line")
}

func (c *client) models(ctx context.Context) ([]types.Model, error) {
	var out types.ModelsResponse
	if err := c.getJSON(ctx, "/models", &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *client) status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.getJSON(ctx, "/status", &out)
	return out, err
}

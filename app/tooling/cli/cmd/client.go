package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// client is used for all calls to the node. Mining can take a while.
var client = http.Client{
	Timeout: 5 * time.Minute,
}

// apiError is the error document returned by the node.
type apiError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// call executes the request against the node and decodes the response
// into resp when it is not nil.
func call(method string, path string, req any, resp any) error {
	var body bytes.Buffer
	if req != nil {
		if err := json.NewEncoder(&body).Encode(req); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	r, err := http.NewRequest(method, url+path, &body)
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	res, err := client.Do(r)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var ae apiError
		if err := json.NewDecoder(res.Body).Decode(&ae); err != nil {
			return fmt.Errorf("status %d", res.StatusCode)
		}
		if len(ae.Fields) > 0 {
			return fmt.Errorf("status %d: %s: %v", res.StatusCode, ae.Error, ae.Fields)
		}
		return fmt.Errorf("status %d: %s", res.StatusCode, ae.Error)
	}

	if resp == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

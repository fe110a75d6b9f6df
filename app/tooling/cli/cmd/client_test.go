package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/blocks/mine":
			var req struct {
				Data string `json:"data"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"index": 1, "data": req.Data})

		default:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(apiError{Error: "data validation error", Fields: map[string]string{"data": "data is a required field"}})
		}
	}))
	defer srv.Close()

	url = srv.URL

	t.Log("Given the need to call the node api.")
	{
		var resp struct {
			Index uint64 `json:"index"`
			Data  string `json:"data"`
		}
		req := struct {
			Data string `json:"data"`
		}{
			Data: "hello",
		}

		if err := call(http.MethodPost, "/v1/blocks/mine", req, &resp); err != nil {
			t.Fatalf("\t%s\tShould be able to call the node: %v", failed, err)
		}
		if resp.Index != 1 || resp.Data != "hello" {
			t.Fatalf("\t%s\tShould decode the response: %+v", failed, resp)
		}
		t.Logf("\t%s\tShould be able to call the node.", success)

		err := call(http.MethodGet, "/v1/unknown", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "data validation error") {
			t.Fatalf("\t%s\tShould report the error from the node: %v", failed, err)
		}
		t.Logf("\t%s\tShould report the error from the node.", success)
	}
}

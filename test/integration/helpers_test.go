package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// testServer holds the base URL of a running dicer instance for tests.
var testServer string

var (
	reachableOnce sync.Once
	reachable     bool
)

func init() {
	testServer = os.Getenv("DICER_URL")
	if testServer == "" {
		testServer = "http://localhost:8787"
	}
	// Ensure the URL has a scheme.
	if !strings.HasPrefix(testServer, "http://") && !strings.HasPrefix(testServer, "https://") {
		testServer = "http://" + testServer
	}
}

// requireServer skips the test unless a dicer server answers /healthz.
// Start one with `dicer serve` before running this package.
func requireServer(t *testing.T) {
	t.Helper()
	reachableOnce.Do(func() {
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(strings.TrimRight(testServer, "/") + "/healthz")
		if err != nil {
			return
		}
		resp.Body.Close()
		reachable = resp.StatusCode == http.StatusOK
	})
	if !reachable {
		t.Skipf("dicer not reachable at %s", testServer)
	}
}

// apiURL builds a full URL for the given API path.
func apiURL(path string) string {
	return strings.TrimRight(testServer, "/") + "/v1/" + path
}

// postJSON sends body as JSON and decodes the response into a map.
func postJSON(t *testing.T, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

// getJSON fetches url and decodes the response into a map.
func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

func decode(t *testing.T, r io.Reader) map[string]interface{} {
	t.Helper()
	raw, _ := io.ReadAll(r)
	var result map[string]interface{}
	if len(raw) == 0 {
		return result
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return result
}

// errorStatus extracts error.status from an error envelope.
func errorStatus(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	s, _ := e["status"].(string)
	return s
}

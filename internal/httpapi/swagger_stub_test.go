//go:build !swagger

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSwaggerNotMountedByDefault(t *testing.T) {
	srv := httptest.NewServer(NewMux(&mockService{ready: true}))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/swagger/index.html")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without swagger tag, got %d", resp.StatusCode)
	}
}

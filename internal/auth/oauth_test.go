package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// fakeGitHub serves the token endpoint and the /user API.
func fakeGitHub(t *testing.T, userJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *GitHubProvider {
	return newGitHubProvider("client", "secret", "http://localhost/cb", oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}, srv.URL+"/user")
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeGitHub(t, `{"id":42,"login":"octo","email":"octo@example.com","avatar_url":"https://a/x.png"}`)

	u, err := testProvider(srv).Exchange(context.Background(), "code-123")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if u.ID != 42 || u.Login != "octo" {
		t.Errorf("user = %+v, want id 42 login octo", u)
	}
}

func TestGitHubProvider_Exchange_RejectsZeroID(t *testing.T) {
	srv := fakeGitHub(t, `{"id":0,"login":"ghost"}`)

	if _, err := testProvider(srv).Exchange(context.Background(), "code-123"); err == nil {
		t.Fatal("Exchange() should reject a profile without an ID")
	}
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	srv := fakeGitHub(t, `{}`)

	raw := testProvider(srv).AuthURL("state-xyz")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthURL() not a URL: %v", err)
	}
	if got := u.Query().Get("state"); got != "state-xyz" {
		t.Errorf("state = %q, want state-xyz", got)
	}
	if !strings.Contains(u.Query().Get("scope"), "read:user") {
		t.Errorf("scope = %q, want read:user", u.Query().Get("scope"))
	}
}

func TestGitHubProvider_Enabled(t *testing.T) {
	if NewGitHubProvider("", "", "").Enabled() {
		t.Error("Enabled() = true without credentials")
	}
	if !NewGitHubProvider("id", "secret", "cb").Enabled() {
		t.Error("Enabled() = false with credentials")
	}
	var nilProvider *GitHubProvider
	if nilProvider.Enabled() {
		t.Error("Enabled() = true on nil provider")
	}
}

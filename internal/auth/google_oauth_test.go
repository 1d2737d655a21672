package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	loginURL := provider.GetLoginURL("test-state-value")
	if loginURL == "" {
		t.Fatal("expected non-empty URL")
	}

	u, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("invalid URL: %v", err)
	}
	q := u.Query()

	tests := []struct {
		param string
		want  string
	}{
		{"client_id", "test-client-id"},
		{"redirect_uri", "http://localhost:8080/auth/google/callback"},
		{"state", "test-state-value"},
		{"response_type", "code"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := q.Get(tt.param); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.want)
			}
		})
	}

	scope := q.Get("scope")
	for _, s := range []string{"openid", "email", "profile"} {
		if !strings.Contains(scope, s) {
			t.Errorf("scope %q should contain %q", scope, s)
		}
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %q, want accounts.google.com", u.Host)
	}
}

// TestGoogleOAuthProvider_GetLoginURL_Unconfigured は設定不足の場合に空URLを返すことを検証する。
func TestGoogleOAuthProvider_GetLoginURL_Unconfigured(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{})
	if got := provider.GetLoginURL("state"); got != "" {
		t.Errorf("GetLoginURL = %q, want empty", got)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("code"); got != "test-auth-code" {
			t.Errorf("code = %q, want test-auth-code", got)
		}
		if got := r.PostForm.Get("client_id"); got != "test-client-id" {
			t.Errorf("client_id = %q, want test-client-id", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":            "google-sub-12345",
			"email":          "User@Gmail.com",
			"email_verified": true,
			"name":           "Google User",
		})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if userInfo.Provider != "google" {
		t.Errorf("provider = %q, want %q", userInfo.Provider, "google")
	}
	if userInfo.ProviderUserID != "google-sub-12345" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "google-sub-12345")
	}
	// メールアドレスは小文字に正規化される
	if userInfo.Email != "user@gmail.com" {
		t.Errorf("email = %q, want %q", userInfo.Email, "user@gmail.com")
	}
	if !userInfo.EmailVerified {
		t.Error("EmailVerified should be true")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_EmptyCode(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{ClientID: "id", RedirectURL: "http://localhost/cb"})
	if _, err := provider.ExchangeCode(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty code")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "invalid-code"); err == nil {
		t.Fatal("expected error from ExchangeCode with invalid code")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_UserInfoError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"401応答", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"subが空", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"email": "x@example.com"})
		}},
		{"JSONが不正", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userInfoServer := httptest.NewServer(tt.handler)
			defer userInfoServer.Close()

			provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
				ClientID:     "test-client-id",
				ClientSecret: "test-client-secret",
				RedirectURL:  "http://localhost:8080/auth/google/callback",
				TokenURL:     tokenServer.URL,
				UserInfoURL:  userInfoServer.URL,
			})

			if _, err := provider.ExchangeCode(context.Background(), "valid-code"); err == nil {
				t.Fatal("expected error from ExchangeCode when user info fetch fails")
			}
		})
	}
}

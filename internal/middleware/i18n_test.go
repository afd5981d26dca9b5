package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name:    "query parameter wins",
			target:  "/?lang=zh",
			setup:   func(r *http.Request) { r.Header.Set("Accept-Language", "en-US") },
			country: "US",
			want:    "zh",
		},
		{
			name:    "x-locale overrides country",
			setup:   func(r *http.Request) { r.Header.Set("X-Locale", "zh-CN") },
			country: "US",
			want:    "zh",
		},
		{
			name:  "accept-language used",
			setup: func(r *http.Request) { r.Header.Set("Accept-Language", "en-US,en;q=0.9") },
			want:  "en",
		},
		{
			name:  "accept-language chinese preference",
			setup: func(r *http.Request) { r.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.5") },
			want:  "zh",
		},
		{
			name:    "unsupported accept-language falls through to country",
			setup:   func(r *http.Request) { r.Header.Set("Accept-Language", "de-DE") },
			country: "CN",
			want:    "zh",
		},
		{
			name:    "chinese region country",
			country: "HK",
			want:    "zh",
		},
		{
			name:     "other country answers in en",
			country:  "US",
			fallback: "zh",
			want:     "en",
		},
		{
			name:     "configured fallback",
			fallback: "zh",
			want:     "zh",
		},
		{
			name: "default to en",
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := tc.target
			if target == "" {
				target = "/"
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback, tc.country)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "us")
				r.Header.Set("CF-IPCountry", "cn")
			},
			want: "US",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "tw", nil
			},
			want: "TW",
		},
		{
			name: "forwarded ip goes to resolver",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
			},
			resolver: func(ip string) (string, error) {
				if ip != "198.51.100.7" {
					return "", assertError("wrong ip " + ip)
				}
				return "cn", nil
			},
			want: "CN",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != "en" {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, "en")
	}
	ctx = context.WithValue(ctx, LocaleKey, "zh")
	if got := LocaleFromContext(ctx); got != "zh" {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, "zh")
	}
}

func TestI18NLocalizesErrors(t *testing.T) {
	h := I18N("en", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(r.Context(), w, http.StatusPaymentRequired, CodeInsufficientCredits, "")
	}))
	req := httptest.NewRequest(http.MethodGet, "/?lang=zh", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Language"); got != "zh" {
		t.Fatalf("Content-Language = %q", got)
	}
	var body ErrorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != CodeInsufficientCredits || body.Message != "积分不足" {
		t.Fatalf("body = %+v", body)
	}
}

func TestMessageFallback(t *testing.T) {
	if got := Message("fr", CodeJobNotFound); got != "job not found" {
		t.Fatalf("Message fallback = %q", got)
	}
	if got := Message("zh", "no_such_code"); got != "no_such_code" {
		t.Fatalf("Message unknown code = %q", got)
	}
}

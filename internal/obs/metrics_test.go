package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/auth/login":                 "/auth/login",
		"/connections/01ABCDEF":       "/connections/:id",
		"/connections/latest":         "/connections/latest",
		"/connections/count":          "/connections/count",
		"/connections/01AB/logout":    "/connections/:id/logout",
		"/users/01AB/connections":     "/users/:id/connections",
		"/connections?page=2":         "/connections",
		"/auth/refresh-token?foo=bar": "/auth/refresh-token",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

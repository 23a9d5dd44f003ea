package observability

import "testing"

func TestSanitizeEmail(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "alice@example.com", want: "a***@example.com"},
		{input: "  bob@luxe.plan ", want: "b***@luxe.plan"},
		{input: "not-an-email", want: "***"},
		{input: "@example.com", want: "***"},
		{input: "c\nrlf@example.com", want: "c***@example.com"},
	}
	for _, tc := range cases {
		if got := SanitizeEmail(tc.input); got != tc.want {
			t.Fatalf("SanitizeEmail(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSanitizeRouteDefaultsToRoot(t *testing.T) {
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("expected root route, got %q", got)
	}
	if got := SanitizeRoute("/api/v1/bookings\x00"); got != "/api/v1/bookings" {
		t.Fatalf("expected control characters stripped, got %q", got)
	}
}

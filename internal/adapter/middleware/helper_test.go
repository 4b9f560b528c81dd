package middleware

import (
	"net/http"
	"testing"
	"time"
)

func TestValidReqID(t *testing.T) {
	good := []string{
		"123e4567-e89b-12d3-a456-426614174000",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}
	bad := []string{
		"",
		"123E4567-E89B-12D3-A456-426614174000",
		"aaaa",
		"123e4567-e89b-62d3-a456-426614174000",
	}
	for _, id := range good {
		if !validReqID(id) {
			t.Errorf("%q should be valid", id)
		}
	}
	for _, id := range bad {
		if validReqID(id) {
			t.Errorf("%q should be invalid", id)
		}
	}
}

func TestParseRequestAt(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"seconds": "1714564800",
		"millis":  "1714564800000",
		"rfc3339": "2024-05-01T12:00:00Z",
		"offset":  "2024-05-01T19:00:00+07:00",
	}
	for name, raw := range cases {
		got, err := parseRequestAt(raw)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
	for _, raw := range []string{"", "2024-05-01T12:00:00", "yesterday"} {
		if _, err := parseRequestAt(raw); err == nil {
			t.Errorf("%q should be rejected", raw)
		}
	}
}

func TestSubmissionHeaders(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := http.Header{}
	h.Set(HeaderRequestID, " aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa ")
	h.Set(HeaderRequestAt, now.Add(-time.Minute).Format(time.RFC3339))

	id, at, err := submissionHeaders(h, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("id = %q", id)
	}
	if !at.Equal(now.Add(-time.Minute)) {
		t.Fatalf("at = %v", at)
	}

	h.Set(HeaderRequestAt, now.Add(maxClockSkew+time.Minute).Format(time.RFC3339))
	if _, _, err := submissionHeaders(h, now); err == nil {
		t.Fatal("future timestamp beyond skew should be rejected")
	}
}

func TestBuildKey_ScopedByPath(t *testing.T) {
	a := buildKey(http.MethodPost, "/sessions/one/loans", "x")
	b := buildKey(http.MethodPost, "/sessions/two/loans", "x")
	if a == b {
		t.Fatal("keys for different sessions must differ")
	}
	if a != "idemp:ax:post:/sessions/one/loans:x" {
		t.Fatalf("key = %q", a)
	}
}

func TestMutating(t *testing.T) {
	if mutating(http.MethodGet) || mutating(http.MethodHead) || mutating(http.MethodOptions) {
		t.Fatal("safe methods must not be enforced")
	}
	if !mutating(http.MethodPost) || !mutating(http.MethodPut) {
		t.Fatal("POST and PUT must be enforced")
	}
}

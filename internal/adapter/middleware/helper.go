package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-5][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

func nowUTC() time.Time { return time.Now().UTC() }

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func bodyHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// buildKey scopes a request id to the concrete path, which carries the session id.
func buildKey(method, path, requestID string) string {
	return "idemp:ax:" + strings.ToLower(method) + ":" + path + ":" + requestID
}

// validReqID accepts a lowercase uuid (v1-v5) or 32 lowercase hex chars.
func validReqID(id string) bool {
	return reUUID.MatchString(id) || reHex32.MatchString(id)
}

// submissionHeaders reads and checks the request id and timestamp against now.
func submissionHeaders(h http.Header, now time.Time) (string, time.Time, error) {
	id := strings.TrimSpace(h.Get(HeaderRequestID))
	if id == "" {
		return "", time.Time{}, errors.New("missing " + HeaderRequestID)
	}
	if !validReqID(id) {
		return "", time.Time{}, errors.New("invalid " + HeaderRequestID + " format")
	}
	at, err := parseRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return "", time.Time{}, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return "", time.Time{}, errors.New(HeaderRequestAt + " too skewed")
	}
	return id, at, nil
}

// parseRequestAt takes epoch seconds, epoch milliseconds, or RFC 3339 with a
// zone. Values above 1e12 are read as milliseconds.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

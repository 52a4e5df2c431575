package upstream

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"
)

// rateLimitBody covers the JSON shapes rate limited responses use to say
// how long to wait: Discord sends seconds as a float, others a duration string.
type rateLimitBody struct {
	RetryAfter json.Number `json:"retry_after"`
	RetryDelay string      `json:"retryDelay"`
}

// ParseRetryDelay extracts a retry duration from a 429 response.
// It checks the standard Retry-After header first, then the JSON body.
// Returns 0 if no retry information is found.
// NOTE: This consumes and restores the response body if it needs to read it.
func ParseRetryDelay(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := http.ParseTime(retryAfter); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
			return 0
		}
	}

	if resp.Body == nil {
		return 0
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0
	}
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var body rateLimitBody
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return 0
	}
	if body.RetryAfter != "" {
		if secs, err := body.RetryAfter.Float64(); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	if body.RetryDelay != "" {
		if d, err := time.ParseDuration(body.RetryDelay); err == nil {
			return d
		}
	}
	return 0
}

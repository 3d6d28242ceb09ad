package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offersync/internal/member"
	pkgstrings "offersync/pkg/strings"
)

// Response is the raw result of one mutation call.
type Response struct {
	StatusCode int
	Body       []byte
	// RetryAfter is the server-requested delay; HasRetryAfter is false when the header was absent or unparseable.
	RetryAfter    time.Duration
	HasRetryAfter bool
	// Err is set for transport-level failures (no HTTP status was received).
	Err error
}

// OK reports a 2xx status with no transport error.
func (r Response) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Describe renders the response for error reports.
func (r Response) Describe() string {
	if r.Err != nil {
		return "request error: " + r.Err.Error()
	}
	return fmt.Sprintf("HTTP %d: %s", r.StatusCode, pkgstrings.Truncate(string(r.Body), pkgstrings.DefaultErrorMaxLen))
}

// parseRetryAfter accepts delta-seconds (fractional allowed) or an HTTP date.
func parseRetryAfter(h string, now time.Time) (time.Duration, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(h, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(h); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// IsLockMessage reports whether a body says the resource is busy with another job.
func IsLockMessage(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("job is in progress"))
}

// BodyKind tags the known shapes of API response bodies.
type BodyKind int

const (
	BodyUnknown BodyKind = iota
	BodyEmpty
	// BodyExisting lists members already associated with the resource (existing_variants).
	BodyExisting
	// BodySkipped lists members the API ignored as invalid (skipped_invalid).
	BodySkipped
	// BodyFailed lists members the API could not process (failed_variant_ids).
	BodyFailed
	// BodyMessage is an error/message text without member ids.
	BodyMessage
)

func (k BodyKind) String() string {
	switch k {
	case BodyEmpty:
		return "empty"
	case BodyExisting:
		return "existing"
	case BodySkipped:
		return "skipped"
	case BodyFailed:
		return "failed"
	case BodyMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Body is a decoded response body.
type Body struct {
	Kind    BodyKind
	IDs     []member.Member
	Message string
	Raw     []byte
}

// HasIDs reports whether the body names specific members.
func (b Body) HasIDs() bool {
	return len(b.IDs) > 0
}

type wireBody struct {
	ExistingVariants []json.Number   `json:"existing_variants"`
	SkippedInvalid   []json.Number   `json:"skipped_invalid"`
	FailedVariantIDs []json.Number   `json:"failed_variant_ids"`
	Error            json.RawMessage `json:"error"`
	Message          json.RawMessage `json:"message"`
	Errors           json.RawMessage `json:"errors"`
}

// DecodeBody maps a raw body to one of the known shapes. Member lists take
// precedence over messages, in the order existing, failed, skipped.
func DecodeBody(raw []byte) Body {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Body{Kind: BodyEmpty, Raw: raw}
	}

	var w wireBody
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Body{Kind: BodyUnknown, Raw: raw, Message: string(trimmed)}
	}

	message := firstText(w.Error, w.Message, w.Errors)
	for _, candidate := range []struct {
		kind BodyKind
		ids  []json.Number
	}{
		{BodyExisting, w.ExistingVariants},
		{BodyFailed, w.FailedVariantIDs},
		{BodySkipped, w.SkippedInvalid},
	} {
		if ids := numbersToMembers(candidate.ids); len(ids) > 0 {
			return Body{Kind: candidate.kind, IDs: ids, Message: message, Raw: raw}
		}
	}

	if message != "" {
		return Body{Kind: BodyMessage, Message: message, Raw: raw}
	}
	return Body{Kind: BodyUnknown, Raw: raw}
}

// SuccessFlags extracts the member lists a 2xx body may carry.
func SuccessFlags(raw []byte) (skipped, failed []member.Member) {
	var w wireBody
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, nil
	}
	return numbersToMembers(w.SkippedInvalid), numbersToMembers(w.FailedVariantIDs)
}

func numbersToMembers(nums []json.Number) []member.Member {
	var out []member.Member
	for _, n := range nums {
		if m, err := member.Parse(n); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func firstText(fields ...json.RawMessage) string {
	for _, f := range fields {
		if len(f) == 0 || string(f) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(f, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		return string(f)
	}
	return ""
}

// StatusError is returned by ListMembers for non-2xx listing responses.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, pkgstrings.Truncate(e.Body, pkgstrings.DefaultErrorMaxLen))
}

// Transient reports 429 and 5xx statuses.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// transportError marks failures where no HTTP status was received.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "request error: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// IsTransient reports whether err from ListMembers is worth retrying.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

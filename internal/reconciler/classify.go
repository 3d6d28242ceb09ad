package reconciler

import (
	"net/http"

	"offersync/internal/remote"
)

// Classify maps a response to an outcome. The lock check runs before the
// status checks because the remote reports locks with 4xx statuses.
func Classify(resp remote.Response) Outcome {
	out := Outcome{Response: resp}
	switch {
	case resp.Err != nil:
		out.Kind = OutcomeTransient
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		out.Kind = OutcomeSuccess
		return out
	case remote.IsLockMessage(resp.Body):
		out.Kind = OutcomeLocked
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		out.Kind = OutcomeTransient
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		out.Kind = OutcomeValidation
	default:
		out.Kind = OutcomeHard
	}
	out.Reason = resp.Describe()
	return out
}

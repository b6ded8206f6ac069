package rpcclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

// maxReasonLen bounds how much of a non-JSON error body is kept.
const maxReasonLen = 256

// classify turns the outcome of one HTTP exchange into either a successful
// response or a tagged error.
//
//	transport error       Transient (Cancelled when ctx is done)
//	2xx, success=false    from the node's message, NodeRejected otherwise
//	2xx POST with error   same
//	408, 425, 429, 5xx    Transient
//	401, 403              Auth
//	404                   req.notFound, NotFound by default
//	other 4xx             from the node's message, NodeRejected otherwise
func classify(op string, req request, status int, body []byte, transportErr, ctxErr error) (*response, error) {
	if transportErr != nil {
		if ctxErr != nil {
			return nil, errs.Wrap(errs.Cancelled, op, ctxErr)
		}
		return nil, &errs.Error{Kind: errs.Transient, Op: op, Msg: "request failed: " + transportErr.Error(), Err: transportErr}
	}

	var env envelope
	isJSON := json.Unmarshal(body, &env) == nil
	reason := env.reason()
	if reason == "" && !isJSON {
		reason = strings.TrimSpace(string(body))
		if len(reason) > maxReasonLen {
			reason = reason[:maxReasonLen]
		}
	}
	if reason == "" {
		reason = http.StatusText(status)
	}

	switch {
	case status >= 200 && status < 300:
		// Read replies may carry an "error" field describing the resource;
		// only submits treat it as a rejection.
		failed := env.Success != nil && !*env.Success
		if env.Success == nil && env.Error != "" && req.method == http.MethodPost {
			failed = true
		}
		if failed {
			return nil, rejection(op, reason)
		}
		return &response{body: body, env: env}, nil

	case status == http.StatusRequestTimeout, status == http.StatusTooEarly,
		status == http.StatusTooManyRequests, status >= 500:
		return nil, errs.E(errs.Transient, op, fmt.Sprintf("node returned %d: %s", status, reason))

	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return nil, errs.E(errs.Auth, op, reason)

	case status == http.StatusNotFound:
		kind := req.notFound
		if kind == errs.Unknown {
			kind = errs.NotFound
		}
		if k, ok := kindFromMessage(reason); ok && k != errs.NotFound {
			kind = k
		}
		return nil, errs.E(kind, op, reason)

	default:
		return nil, rejection(op, reason)
	}
}

func rejection(op, reason string) error {
	kind := errs.NodeRejected
	if k, ok := kindFromMessage(reason); ok {
		kind = k
	}
	return errs.E(kind, op, reason)
}

// kindFromMessage recognises the node's rejection messages.
func kindFromMessage(msg string) (errs.Kind, bool) {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "duplicate"), strings.Contains(m, "already"):
		return errs.Duplicate, true
	case strings.Contains(m, "nonce"):
		return errs.NonceConflict, true
	case strings.Contains(m, "public key") &&
		(strings.Contains(m, "not found") || strings.Contains(m, "no public") || strings.Contains(m, "missing")):
		return errs.NoRecipientKey, true
	case strings.Contains(m, "not found"):
		return errs.NotFound, true
	case strings.Contains(m, "unauthorized"), strings.Contains(m, "forbidden"),
		strings.Contains(m, "invalid private key"):
		return errs.Auth, true
	}
	return errs.Unknown, false
}

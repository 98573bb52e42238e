package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed upstream call.
type Kind int

const (
	KindOther Kind = iota
	KindAuthInvalid
	KindRateLimited
	KindBadRequest
	KindTransientNetwork
	KindServerError
	KindUnknownUpstream
)

var kindNames = map[Kind]string{
	KindOther:            "other",
	KindAuthInvalid:      "auth_invalid",
	KindRateLimited:      "rate_limited",
	KindBadRequest:       "bad_request",
	KindTransientNetwork: "transient_network",
	KindServerError:      "server_error",
	KindUnknownUpstream:  "unknown_upstream",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error signatures the platform puts in the message of a failed response.
const (
	signaturePrefix      = "WeReadError"
	signatureAuthInvalid = "WeReadError401"
	signatureRateLimited = "WeReadError429"
	signatureBadRequest  = "WeReadError400"
)

// Error is a classified upstream failure.
type Error struct {
	Kind       Kind
	AccountID  string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("upstream ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindOther
}

// IsRetryable reports whether a fresh attempt may succeed. A server error
// carrying an unrecognized platform signature is retried too; its account is
// already blocked, so the next attempt runs on another one.
func IsRetryable(err error) bool {
	var ue *Error
	if !errors.As(err, &ue) {
		return false
	}
	switch ue.Kind {
	case KindTransientNetwork, KindServerError:
		return true
	case KindUnknownUpstream:
		return ue.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// classifyMessage maps a platform error signature to a kind. The second
// return is false when message carries no known signature.
func classifyMessage(message string) (Kind, bool) {
	switch {
	case strings.Contains(message, signatureAuthInvalid):
		return KindAuthInvalid, true
	case strings.Contains(message, signatureRateLimited):
		return KindRateLimited, true
	case strings.Contains(message, signatureBadRequest):
		return KindBadRequest, true
	case strings.Contains(message, signaturePrefix):
		return KindUnknownUpstream, true
	default:
		return KindOther, false
	}
}

// classifyStatus handles responses without a signature.
func classifyStatus(status int) Kind {
	if status >= 500 {
		return KindServerError
	}
	return KindOther
}

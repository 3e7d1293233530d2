package translator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a provider-level failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfigurationMissing
	KindTransport
	KindRejected
	KindMalformed
	KindUnsupported
	KindTaskFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindTransport:
		return "transport_failure"
	case KindRejected:
		return "provider_rejected"
	case KindMalformed:
		return "response_malformed"
	case KindUnsupported:
		return "unsupported_provider"
	case KindTaskFailure:
		return "task_failure"
	default:
		return "unknown"
	}
}

const (
	MsgNoAPIKey        = "No API key configured"
	MsgKeyPairRequired = "API key and secret key required"
	MsgNotSupported    = "Service not supported"
	MsgNoTranslation   = "No translation in response"
)

// Error is the single error type returned by adapters, the resolver and the
// dispatcher. Error() is what ends up in Result.Error and StreamEvent.Error.
type Error struct {
	Kind    ErrorKind
	Service string
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		if e.Err != nil {
			return fmt.Sprintf("%s API request failed: %v", e.Service, e.Err)
		}
		return fmt.Sprintf("%s API request failed", e.Service)
	case KindRejected:
		body := strings.TrimSpace(e.Body)
		if body == "" {
			return fmt.Sprintf("%s API error: status %d", e.Service, e.Status)
		}
		return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.Status, body)
	}
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func MissingConfig(service, msg string) *Error {
	return &Error{Kind: KindConfigurationMissing, Service: service, Message: msg}
}

func TransportFailure(service string, err error) *Error {
	return &Error{Kind: KindTransport, Service: service, Err: err}
}

func Rejected(service string, status int, body string) *Error {
	return &Error{Kind: KindRejected, Service: service, Status: status, Body: body}
}

func Malformed(service, msg string, err error) *Error {
	if msg == "" {
		msg = MsgNoTranslation
	}
	return &Error{Kind: KindMalformed, Service: service, Message: msg, Err: err}
}

func Unsupported(service string) *Error {
	return &Error{Kind: KindUnsupported, Service: service, Message: MsgNotSupported}
}

func TaskFailure(service string, cause any) *Error {
	return &Error{Kind: KindTaskFailure, Service: service, Message: fmt.Sprintf("task failed: %v", cause)}
}

// KindOf reports the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

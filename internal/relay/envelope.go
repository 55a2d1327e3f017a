// Package relay implements the remote gateway used to reach the cloud admin API.
// Every upstream call is wrapped into an Envelope and posted to a single relay
// endpoint, which performs the call server-side and passes the response back verbatim.
package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
)

// Envelope is the JSON document posted to the relay for one upstream call.
type Envelope struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the upstream request body, already serialized.
	Body string `json:"body,omitempty"`
}

// NewEnvelope builds an envelope for method and url, serializing payload as JSON when non-nil.
func NewEnvelope(method, url string, payload any) (Envelope, error) {
	env := Envelope{Method: method, URL: url, Headers: map[string]string{}}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal upstream body: %w", err)
	}
	env.Body = string(data)
	env.Headers[constants.ContentTypeHeader] = constants.JSONContentType
	return env, nil
}

// WithHeader returns a copy of the envelope carrying an extra header.
func (e Envelope) WithHeader(name, value string) Envelope {
	headers := make(map[string]string, len(e.Headers)+1)
	for k, v := range e.Headers {
		headers[k] = v
	}
	headers[name] = value
	e.Headers = headers
	return e
}

// EffectiveMethod returns the upstream method, defaulting to POST when a body is present.
func (e Envelope) EffectiveMethod() string {
	if e.Method != "" {
		return e.Method
	}
	if e.Body != "" {
		return http.MethodPost
	}
	return http.MethodGet
}

// Response is the upstream response as returned by the relay.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to parse upstream response: %w", err)
	}
	return nil
}

// Option tunes how a single relayed call classifies its response.
type Option func(*callOptions)

type callOptions struct {
	allowed []int
	message string
}

// AllowStatus whitelists non-2xx statuses that must not be treated as failures.
func AllowStatus(codes ...int) Option {
	return func(o *callOptions) {
		o.allowed = append(o.allowed, codes...)
	}
}

// WithMessage sets the human-readable message of the error raised on failure.
func WithMessage(message string) Option {
	return func(o *callOptions) {
		o.message = message
	}
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CheckResponse converts a non-accepted upstream response into a remote call error.
// A response is accepted when its status is 2xx or explicitly whitelisted with AllowStatus.
func CheckResponse(resp *Response, opts ...Option) error {
	o := applyOptions(opts)
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	if slices.Contains(o.allowed, resp.StatusCode) {
		return nil
	}
	return appErrors.ErrRemoteCallFailed(resp.StatusCode, o.message, remoteErrorBody(resp.Body))
}

// remoteErrorBody extracts the provider's error text when the body is a JSON error document.
func remoteErrorBody(body []byte) string {
	var doc struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
		Detail    string `json:"detail"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	switch {
	case doc.Error != "" && doc.ErrorCode != "":
		return fmt.Sprintf("%s (%s)", doc.Error, doc.ErrorCode)
	case doc.Error != "":
		return doc.Error
	case doc.Detail != "":
		return doc.Detail
	default:
		return string(body)
	}
}

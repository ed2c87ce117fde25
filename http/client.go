package http

import (
	"net/http"

	x402kit "github.com/aeither/x402-starter-kit"
)

// Client is an http.Client whose transport performs the x402 payment
// handshake automatically.
type Client struct {
	*http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a payment-aware HTTP client. At minimum a registry (or
// signers) must be supplied, otherwise 402 responses fail with an
// unsupported-network error.
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{Client: &http.Client{}}
	client.Transport = http.DefaultTransport

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// WithHTTPClient replaces the underlying http.Client. Its transport becomes
// the base the payment transport wraps.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		c.Client = httpClient
		if c.Transport == nil {
			c.Transport = http.DefaultTransport
		}
		return nil
	}
}

// WithRegistry installs a prebuilt signer registry.
func WithRegistry(registry *x402kit.SignerRegistry) ClientOption {
	return func(c *Client) error {
		paymentTransport(c).Registry = registry
		return nil
	}
}

// WithSigners builds a registry from the given signers. Duplicate network
// registrations fail here, at construction time.
func WithSigners(signers ...x402kit.Signer) ClientOption {
	return func(c *Client) error {
		registry, err := x402kit.NewSignerRegistry(signers...)
		if err != nil {
			return err
		}
		paymentTransport(c).Registry = registry
		return nil
	}
}

// WithPaymentCallbacks installs lifecycle callbacks. Nil callbacks are left
// unset.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402kit.PaymentCallback) ClientOption {
	return func(c *Client) error {
		transport := paymentTransport(c)
		if onAttempt != nil {
			transport.OnPaymentAttempt = onAttempt
		}
		if onSuccess != nil {
			transport.OnPaymentSuccess = onSuccess
		}
		if onFailure != nil {
			transport.OnPaymentFailure = onFailure
		}
		return nil
	}
}

// paymentTransport returns the client's PaymentTransport, wrapping the
// current transport if it is not one yet.
func paymentTransport(c *Client) *PaymentTransport {
	if transport, ok := c.Transport.(*PaymentTransport); ok {
		return transport
	}
	transport := &PaymentTransport{Base: c.Transport}
	c.Transport = transport
	return transport
}

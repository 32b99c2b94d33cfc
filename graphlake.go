package graphlake

import (
	"net/http"

	"github.com/graphlake/graphlake-go/transport"
)

// Client is the aggregate entry point: one validated transport configuration
// shared by the graph, operation, table, materialization, and query clients,
// with a single teardown. Construction is atomic: either every sub-client is
// bound to the validated configuration or New returns an error and nothing
// is built.
//
// There is no package-level default instance; construct one Client per
// configuration and pass it where needed.
type Client struct {
	transport *transport.Client

	Graphs          *GraphClient
	Operations      *OperationClient
	Tables          *TableClient
	Materialization *MaterializationClient
	Query           *QueryClient
}

// Option configures a Client beyond its Config.
type Option func(*options)

type options struct {
	httpClient *http.Client
	clock      Clock
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to install a
// custom transport or test server.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithClock injects a clock, letting tests drive polling and retry without
// wall-clock delays.
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// New validates cfg and builds the client. Sub-clients share one transport
// and therefore one connection pool; independent calls may run concurrently.
func New(cfg Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = SystemClock
	}

	tOpts := []transport.Option{}
	if o.httpClient != nil {
		tOpts = append(tOpts, transport.WithHTTPClient(o.httpClient))
	}
	tc, err := transport.New(transport.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Token:   cfg.Token,
		Headers: cfg.Headers,
		Timeout: cfg.Timeout,
	}, tOpts...)
	if err != nil {
		return nil, err
	}

	ops := &OperationClient{tc: tc, clock: o.clock}
	return &Client{
		transport:       tc,
		Graphs:          NewGraphClient(tc, ops),
		Operations:      ops,
		Tables:          &TableClient{tc: tc, ops: ops, clock: o.clock},
		Materialization: NewMaterializationClient(tc),
		Query:           NewQueryClient(tc),
	}, nil
}

// Transport exposes the underlying envelope client for callers that need an
// endpoint this package does not wrap.
func (c *Client) Transport() *transport.Client {
	return c.transport
}

// Close releases pooled connections across every sub-client. The Client must
// not be used afterwards.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

package transport

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	utls "github.com/refraction-networking/utls"
)

// Doer is the minimal HTTP client surface the stream client consumes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an HTTP client tuned for long-lived streaming responses.
// With impersonation enabled it performs the TLS handshake through a
// Chrome ClientHello, pinned to HTTP/1.1 so the event stream is not
// subject to HTTP/2 flow-control stalls at the edge.
type Client struct {
	http *http.Client
}

// New builds a transport client. timeout bounds the entire exchange
// including the streaming read; zero disables it.
func New(timeout time.Duration, impersonate bool) *Client {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext:         (&net.Dialer{Timeout: 15 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		// Compression is negotiated and unwrapped by the decoding
		// round tripper so brotli is covered too.
		DisableCompression: true,
	}
	if impersonate {
		base.ForceAttemptHTTP2 = false
		base.DialTLSContext = chromeTLSDialer()
	}
	return &Client{http: &http.Client{Timeout: timeout, Transport: &decodingRoundTripper{next: base}}}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// decodingRoundTripper advertises gzip and brotli and transparently
// unwraps whichever the server picked.
type decodingRoundTripper struct {
	next http.RoundTripper
}

func (d *decodingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}
	resp, err := d.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		resp.Body = decodedBody{Reader: brotli.NewReader(resp.Body), closer: resp.Body}
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		resp.Body = decodedBody{Reader: zr, closer: resp.Body}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type decodedBody struct {
	io.Reader
	closer io.Closer
}

func (b decodedBody) Close() error { return b.closer.Close() }

func chromeTLSDialer() func(ctx context.Context, network, addr string) (net.Conn, error) {
	var dialer net.Dialer
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		plainConn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		host, _, _ := net.SplitHostPort(addr)
		uConn := utls.UClient(plainConn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
		if err := forceHTTP11ALPN(uConn); err != nil {
			_ = plainConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = plainConn.Close()
			return nil, err
		}
		if negotiated := uConn.ConnectionState().NegotiatedProtocol; negotiated != "" && negotiated != "http/1.1" {
			_ = uConn.Close()
			return nil, fmt.Errorf("unexpected ALPN protocol negotiated: %s", negotiated)
		}
		return uConn, nil
	}
}

func forceHTTP11ALPN(uConn *utls.UConn) error {
	if err := uConn.BuildHandshakeState(); err != nil {
		return err
	}
	for _, ext := range uConn.Extensions {
		alpnExt, ok := ext.(*utls.ALPNExtension)
		if !ok {
			continue
		}
		alpnExt.AlpnProtocols = []string{"http/1.1"}
		return nil
	}
	return nil
}

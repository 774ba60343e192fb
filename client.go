package luxflix

import (
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewHTTPClient returns the client used for Telegram and GitHub calls. It
// dials through the proxy named by ALL_PROXY when one is set.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = proxy.Dial
	return &http.Client{Transport: transport, Timeout: timeout}
}

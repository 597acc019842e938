// Package panorama talks to the Panorama XML API. The surface is the
// three operations the push stage needs: ensure address objects, commit,
// and push to a device group. Everything else about the device is out of
// scope here.
package panorama

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AddressObject is one address object to ensure on the device.
type AddressObject struct {
	Name  string
	Value string // ip-netmask form, e.g. "192.168.1.1/24"
	Tags  []string
}

// AddressClient defines the interface for the push stages. Each call maps
// to one stage; callers run them in strict sequence and do not retry.
type AddressClient interface {
	EnsureAddresses(ctx context.Context, deviceGroup string, objects []AddressObject) error
	Commit(ctx context.Context) (jobID string, err error)
	Push(ctx context.Context, deviceGroup string) (jobID string, err error)
}

// Client implements AddressClient against the Panorama XML API.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// Ensure Client implements AddressClient.
var _ AddressClient = (*Client)(nil)

// New creates a new Panorama client. host is the management address
// without scheme. insecure skips TLS verification for lab devices with
// self-signed certificates.
func New(host, apiKey string, insecure bool) *Client {
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &Client{
		host:   host,
		apiKey: apiKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
	}
}

// GenerateAPIKey exchanges a username and password for an API key using
// the keygen endpoint. Used at startup when no key is configured; the
// credentials are never held beyond this call.
func GenerateAPIKey(ctx context.Context, host, user, password string, insecure bool) (string, error) {
	c := New(host, "", insecure)
	params := url.Values{}
	params.Set("type", "keygen")
	params.Set("user", user)
	params.Set("password", password)

	resp, err := c.do(ctx, params)
	if err != nil {
		return "", fmt.Errorf("keygen: %w", err)
	}
	if resp.Result.Key == "" {
		return "", fmt.Errorf("keygen: no key in response")
	}
	return resp.Result.Key, nil
}

// EnsureAddresses creates or updates one address object per record under
// the device group. Set semantics are idempotent in intent: an existing
// object with the same name is overwritten.
func (c *Client) EnsureAddresses(ctx context.Context, deviceGroup string, objects []AddressObject) error {
	for _, obj := range objects {
		params := url.Values{}
		params.Set("type", "config")
		params.Set("action", "set")
		params.Set("xpath", addressXPath(deviceGroup, obj.Name))
		params.Set("element", addressElement(obj))

		if _, err := c.do(ctx, params); err != nil {
			return fmt.Errorf("setting address object %q: %w", obj.Name, err)
		}
	}
	return nil
}

// Commit commits the pending configuration on Panorama and returns the
// job ID. The job is not polled; downstream failure handling owns that.
func (c *Client) Commit(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("type", "commit")
	params.Set("cmd", "<commit></commit>")

	resp, err := c.do(ctx, params)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return resp.Result.Job, nil
}

// Push pushes the committed configuration to the device group and
// returns the job ID.
func (c *Client) Push(ctx context.Context, deviceGroup string) (string, error) {
	params := url.Values{}
	params.Set("type", "commit")
	params.Set("action", "all")
	params.Set("cmd", fmt.Sprintf(
		"<commit-all><shared-policy><device-group><entry name=%q/></device-group></shared-policy></commit-all>",
		deviceGroup))

	resp, err := c.do(ctx, params)
	if err != nil {
		return "", fmt.Errorf("push to device group %q: %w", deviceGroup, err)
	}
	return resp.Result.Job, nil
}

// apiResponse is the envelope every XML API call returns.
type apiResponse struct {
	XMLName xml.Name  `xml:"response"`
	Status  string    `xml:"status,attr"`
	Code    string    `xml:"code,attr"`
	Result  apiResult `xml:"result"`
	Msg     apiMsg    `xml:"msg"`
}

type apiResult struct {
	Key string `xml:"key"`
	Job string `xml:"job"`
	Msg string `xml:"msg"`
}

type apiMsg struct {
	Lines []string `xml:"line"`
}

func (m apiMsg) String() string {
	return strings.Join(m.Lines, "; ")
}

// do performs one XML API request and decodes the response envelope.
func (c *Client) do(ctx context.Context, params url.Values) (*apiResponse, error) {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	endpoint := fmt.Sprintf("https://%s/api/", c.host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device returned HTTP %d", httpResp.StatusCode)
	}

	var resp apiResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Status != "success" {
		msg := resp.Msg.String()
		if msg == "" {
			msg = resp.Result.Msg
		}
		return nil, fmt.Errorf("device returned status %q: %s", resp.Status, msg)
	}
	return &resp, nil
}

// addressXPath returns the config xpath for an address object in a
// device group.
func addressXPath(deviceGroup, name string) string {
	return fmt.Sprintf(
		"/config/devices/entry[@name='localhost.localdomain']/device-group/entry[@name='%s']/address/entry[@name='%s']",
		deviceGroup, name)
}

// addressElement renders the element payload for an address object.
func addressElement(obj AddressObject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<ip-netmask>%s</ip-netmask>", xmlEscape(obj.Value))
	if len(obj.Tags) > 0 {
		b.WriteString("<tag>")
		for _, tag := range obj.Tags {
			fmt.Fprintf(&b, "<member>%s</member>", xmlEscape(tag))
		}
		b.WriteString("</tag>")
	}
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Package restclient with the HTTP client for the auth endpoint and the platform REST API
package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
)

// DefaultTimeout of a request
const DefaultTimeout = 10 * time.Second

// RestClient invokes the application's auth endpoint and the platform's REST API
type RestClient struct {
	httpClient *http.Client
	// auth endpoint URL and method, get or post
	authEndpoint string
	authMethod   string
	// base URL of the REST API
	apiURL string
}

// Invoke a HTTP method and read the response
//  method: GET or POST. Parameters of GET are sent in the query, POST sends a form body
//  address URL to invoke
//  params to include
// Returns the response body or an error if the request failed or returned an error status
func (cl *RestClient) Invoke(ctx context.Context, method string, address string, params url.Values) ([]byte, error) {
	var req *http.Request
	var err error

	logrus.Infof("RestClient.Invoke: %s: %s", method, address)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		target := address
		if len(params) > 0 {
			target = address + "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, address, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		err = fmt.Errorf("unsupported method '%s'", method)
	}
	if err != nil {
		return nil, err
	}
	resp, err := cl.httpClient.Do(req)
	if err != nil {
		logrus.Errorf("RestClient.Invoke: %s %s: %s", method, address, err)
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := ioutil.ReadAll(resp.Body)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("%s: %s", resp.Status, respBody)
	}
	if err != nil {
		logrus.Errorf("RestClient.Invoke: Error %s %s: %s", method, address, err)
		return nil, err
	}
	return respBody, nil
}

// Authorize requests a signature for the channel from the auth endpoint.
// The endpoint replies with {"auth": "signature"}.
func (cl *RestClient) Authorize(ctx context.Context, authReq *api.AuthRequest) (string, error) {
	if cl.authEndpoint == "" {
		return "", errors.New("no auth endpoint configured")
	}
	params := url.Values{}
	params.Set("sid", authReq.Sid)
	params.Set("device", authReq.Device)
	params.Set("service", authReq.Service)
	params.Set("resource", authReq.Resource)
	params.Set("ttl", strconv.Itoa(authReq.TTL))
	params.Set("read", strconv.FormatBool(authReq.Read))
	params.Set("write", strconv.FormatBool(authReq.Write))

	body, err := cl.Invoke(ctx, cl.authMethod, cl.authEndpoint, params)
	if err != nil {
		return "", err
	}
	authResp := api.AuthResponse{}
	err = json.Unmarshal(body, &authResp)
	if err != nil {
		return "", fmt.Errorf("bad authentication reply: %s", err)
	}
	if authResp.Auth == "" {
		return "", errors.New("bad authentication reply: no signature")
	}
	return authResp.Auth, nil
}

// ReadResource reads the history of a public persistent resource
//  args with owner, device, service and resource. Limit must be set.
// Returns the records or api.ErrReadFailed
func (cl *RestClient) ReadResource(ctx context.Context, args api.ReadArgs) ([]api.Record, error) {
	params := url.Values{}
	params.Set("owner", args.Owner)
	params.Set("device", args.Device)
	params.Set("service", args.Service)
	params.Set("resource", args.Resource)
	params.Set("limit", strconv.Itoa(args.Limit))

	body, err := cl.Invoke(ctx, http.MethodGet, cl.apiURL+api.DefaultReadPath, params)
	if err != nil {
		return nil, api.ErrReadFailed
	}
	records := make([]api.Record, 0)
	err = json.Unmarshal(body, &records)
	if err != nil {
		logrus.Errorf("RestClient.ReadResource: invalid response: %s", err)
		return nil, api.ErrReadFailed
	}
	return records, nil
}

// HasAuthEndpoint returns true if an auth endpoint is configured
func (cl *RestClient) HasAuthEndpoint() bool {
	return cl.authEndpoint != ""
}

// Close idle connections
func (cl *RestClient) Close() {
	cl.httpClient.CloseIdleConnections()
}

// NewRestClient creates a client for the auth endpoint and REST API
//  authEndpoint URL of the signing endpoint, "" if not used
//  authMethod get or post, default get
//  apiURL base URL of the platform REST API
//  timeout of requests, 0 for the default
func NewRestClient(authEndpoint string, authMethod string, apiURL string, timeout time.Duration) *RestClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if authMethod == "" {
		authMethod = api.AuthMethodGet
	}
	return &RestClient{
		httpClient:   &http.Client{Timeout: timeout},
		authEndpoint: authEndpoint,
		authMethod:   authMethod,
		apiURL:       strings.TrimSuffix(apiURL, "/"),
	}
}

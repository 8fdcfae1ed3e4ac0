package authserver_test

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/pkg/authserver"
	"github.com/wostzone/bbtclient-go/pkg/restclient"
	"github.com/wostzone/bbtclient-go/pkg/signing"
)

const staticFolder = "../../test/static"

var testSigner = signing.NewSigner("key1", "secret1")

func newTestServer() (*authserver.AuthServer, *httptest.Server) {
	srv := authserver.NewAuthServer("127.0.0.1", 0, "", staticFolder, testSigner)
	return srv, httptest.NewServer(srv.Handler())
}

func getAuth(t *testing.T, address string) (int, string) {
	resp, err := http.Get(address)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthGet(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	status, body := getAuth(t, ts.URL+"/auth?sid=sid1&device=dev1&service=svc1&resource=res1&read=true")
	require.Equal(t, http.StatusOK, status)
	authResp := api.AuthResponse{}
	err := json.Unmarshal([]byte(body), &authResp)
	require.NoError(t, err)
	expected := testSigner.Sign("sid1:dev1.svc1.res1:ttl=0:read=true:write=false")
	assert.Equal(t, expected, authResp.Auth)
}

func TestAuthChannel(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	status, body := getAuth(t, ts.URL+"/auth?sid=sid1&channel=private:dev1&ttl=100&write=true")
	require.Equal(t, http.StatusOK, status)
	expected := testSigner.Sign("sid1:private:dev1.*:ttl=100:read=false:write=true")
	assert.Contains(t, body, expected)
}

func TestAuthPost(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	form := url.Values{"sid": {"sid1"}, "device": {"dev1"}, "service": {"*"}, "read": {"true"}}
	resp, err := http.Post(ts.URL+"/auth", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	authResp := api.AuthResponse{}
	err = json.NewDecoder(resp.Body).Decode(&authResp)
	require.NoError(t, err)
	assert.Equal(t, testSigner.Sign("sid1:dev1.*.*:ttl=0:read=true:write=false"), authResp.Auth)
}

func TestAuthUnauthorized(t *testing.T) {
	srv, ts := newTestServer()
	defer ts.Close()

	status, body := getAuth(t, ts.URL+"/auth?device=dev1")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Unauthorized", body)
	status, _ = getAuth(t, ts.URL+"/auth?sid=sid1")
	assert.Equal(t, http.StatusForbidden, status)
	denied := gometrics.GetOrRegisterCounter(authserver.MetricDenied, srv.Metrics())
	assert.Equal(t, int64(2), denied.Count())
}

func TestStaticFiles(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	status, body := getAuth(t, ts.URL+"/index.html")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body)
	status, _ = getAuth(t, ts.URL+"/notafile.html")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSetSigner(t *testing.T) {
	srv, ts := newTestServer()
	defer ts.Close()

	newSigner := signing.NewSigner("key2", "secret2")
	srv.SetSigner(newSigner)
	_, body := getAuth(t, ts.URL+"/auth?sid=sid1&device=dev1")
	assert.Contains(t, body, "key2:")
}

// the client's auth requests are signed by the server
func TestStartStopWithRestClient(t *testing.T) {
	srv := authserver.NewAuthServer("127.0.0.1", 0, "/auth", "", testSigner)
	assert.Empty(t, srv.Address())
	err := srv.Start()
	require.NoError(t, err)
	defer srv.Stop()
	address := srv.Address()
	require.NotEmpty(t, address)

	authReq := &api.AuthRequest{Sid: "sid1", Device: "dev1", Service: "svc1", Resource: "res1", Write: true}
	for _, method := range []string{api.AuthMethodGet, api.AuthMethodPost} {
		cl := restclient.NewRestClient("http://"+address+"/auth", method, "", 0)
		sig, err := cl.Authorize(context.Background(), authReq)
		require.NoError(t, err)
		assert.Equal(t, testSigner.Sign(signing.StringToSign(authReq)), sig)
		cl.Close()
	}
}

func TestStartPortInUse(t *testing.T) {
	srv := authserver.NewAuthServer("127.0.0.1", 0, "", "", testSigner)
	err := srv.Start()
	require.NoError(t, err)
	defer srv.Stop()

	_, port, err := net.SplitHostPort(srv.Address())
	require.NoError(t, err)
	portNr, _ := strconv.Atoi(port)
	srv2 := authserver.NewAuthServer("127.0.0.1", portNr, "", "", testSigner)
	err = srv2.Start()
	assert.Error(t, err)
}

package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/foodapp/internal/backend"
	"github.com/R3E-Network/foodapp/internal/logging"
	"github.com/R3E-Network/foodapp/internal/manifest"
	"github.com/R3E-Network/foodapp/internal/metrics"
	"github.com/R3E-Network/foodapp/internal/probe"
	"github.com/R3E-Network/foodapp/internal/sessionstore"
	"github.com/R3E-Network/foodapp/pkg/testutil"
)

const testSecret = "test-session-secret-0123456789"

type harness struct {
	t       *testing.T
	fake    *testutil.FakeManifest
	store   *sessionstore.Memory
	server  *Server
	metrics *metrics.Metrics
	prober  *probe.Prober
	ts      *httptest.Server
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	fake := testutil.NewFakeManifest(t)
	client, err := manifest.NewClient(manifest.Config{BaseURL: fake.URL(), Timeout: 5 * time.Second})
	require.NoError(t, err)

	logger := logging.NewTest()
	m := metrics.New()
	store := sessionstore.NewMemory()
	prober := probe.New(client, probe.Config{Attempts: 1, Path: "/api/health"}, logger, m)

	opts := Options{
		Client:         client,
		Names:          backend.Names{UserEntity: "users", Restaurants: "restaurants"},
		Store:          store,
		Prober:         prober,
		Logger:         logger,
		Metrics:        m,
		SessionSecret:  testSecret,
		SessionTTL:     time.Hour,
		AdminURL:       fake.URL() + "/admin",
		MaxUploadBytes: 1 << 20,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	srv, err := NewServer(opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &harness{t: t, fake: fake, store: store, server: srv, metrics: m, prober: prober, ts: ts}
}

// browser is an HTTP client with a cookie jar that follows redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (h *harness) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &browser{t: h.t, base: h.ts.URL, client: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

type response struct {
	status int
	body   string
	header http.Header
}

func (b *browser) do(req *http.Request) response {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return response{status: resp.StatusCode, body: string(body), header: resp.Header}
}

func (b *browser) get(path string) response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, bytes.NewBufferString(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

type fileField struct {
	field    string
	filename string
	content  []byte
}

func (b *browser) postMultipart(path string, fields map[string]string, file *fileField) response {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(b.t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile(file.field, file.filename)
		require.NoError(b.t, err)
		_, err = fw.Write(file.content)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.base+path, &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func (b *browser) loginDemo() response {
	b.t.Helper()
	return b.post("/login", url.Values{"email": {testutil.DemoEmail}, "password": {testutil.DemoPassword}})
}

// sessionCookie returns the raw session cookie value held by the jar.
func (b *browser) sessionCookie() string {
	b.t.Helper()
	u, err := url.Parse(b.base)
	require.NoError(b.t, err)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == SessionCookie {
			return c.Value
		}
	}
	return ""
}

func (b *browser) setSessionCookie(value string) {
	u, _ := url.Parse(b.base)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: value, Path: "/"}})
}

func restaurantForm(name, cuisine, description, address string) map[string]string {
	return map[string]string{
		"name":        name,
		"cuisine":     cuisine,
		"description": description,
		"address":     address,
	}
}

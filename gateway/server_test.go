package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/contentmesh/dispatch"
	"github.com/c360studio/contentmesh/llm"
	_ "github.com/c360studio/contentmesh/llm/providers"
	"github.com/c360studio/contentmesh/llm/testutil"
	"github.com/c360studio/contentmesh/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// newTestServer starts profile with a Gemini client backed by rt.
// An empty credential disables the primary path.
func newTestServer(t *testing.T, profileName, credential string, rt *testutil.RecordingTransport) *httptest.Server {
	t.Helper()
	profile, ok := LookupProfile(profileName)
	require.True(t, ok)

	client := llm.NewClient(llm.ProviderConfig{
		Provider:   "gemini",
		Endpoint:   "http://gemini.test/v1beta",
		Credential: credential,
	}, llm.WithHTTPClient(&http.Client{Transport: rt}))

	metrics := dispatch.NewMetrics()
	d := dispatch.New(profile.Name, resolve.NewPrimary(client, nil), dispatch.WithMetrics(metrics))
	s := NewServer(profile, d, ServiceInfo{
		Version:     "1.0.0",
		Provider:    "gemini",
		Model:       client.Model(),
		AIAvailable: client.Available(),
	}, WithMetricsHandler(metrics.Handler()), WithClock(func() time.Time { return fixedNow }))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp, decodeBody(t, resp.Body)
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func TestHealth_ReflectsCredential(t *testing.T) {
	withKey := newTestServer(t, ProfileMCPManager, "key", &testutil.RecordingTransport{})
	withoutKey := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	status, body := getJSON(t, withKey.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mcp-manager", body["service"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "2026-05-04T09:30:00Z", body["timestamp"])
	assert.Equal(t, true, body["capabilities"].(map[string]any)["ai_available"])

	_, body = getJSON(t, withoutKey.URL+"/health")
	caps := body["capabilities"].(map[string]any)
	assert.Equal(t, false, caps["ai_available"])
	assert.Equal(t, 2000.0, caps["max_word_count"])
}

func TestCapabilities(t *testing.T) {
	srv := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	status, body := getJSON(t, srv.URL+"/capabilities")
	assert.Equal(t, http.StatusOK, status)
	ai := body["ai_integration"].(map[string]any)
	assert.Equal(t, false, ai["available"])
	assert.Equal(t, "gemini-2.0-flash", ai["primary_model"])
	assert.Contains(t, body["supported_content_types"], "social_media")
}

func TestInfo_CatchAllGET(t *testing.T) {
	srv := newTestServer(t, ProfileIntentParser, "key", &testutil.RecordingTransport{})

	for _, path := range []string{"/", "/anything/else"} {
		status, body := getJSON(t, srv.URL+path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "intent-parser", body["service"])
		assert.Contains(t, body["endpoints"], "POST /v1/parse - Parse user intent")
	}
}

func TestServices(t *testing.T) {
	srv := newTestServer(t, ProfileContentRouter, "key", &testutil.RecordingTransport{})

	status, body := getJSON(t, srv.URL+"/services")
	require.Equal(t, http.StatusOK, status)
	services := body["services"].([]any)
	require.Len(t, services, 4)
	first := services[0].(map[string]any)
	assert.Equal(t, "generate-content", first["name"])
	assert.Equal(t, "auto", first["task_kind"])

	status, body = getJSON(t, srv.URL+"/services/generate-blog")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "content_generation", body["service"].(map[string]any)["task_kind"])

	status, body = getJSON(t, srv.URL+"/services/nope")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, true, body["error"])
}

func TestPostTask_PrimaryFailureFallsBack(t *testing.T) {
	rt := &testutil.RecordingTransport{
		Responses: []testutil.Reply{testutil.GeminiStatus(http.StatusTooManyRequests, "quota")},
	}
	srv := newTestServer(t, ProfileContentRouter, "key", rt)

	resp, body := postJSON(t, srv.URL+"/generate/blog", `{"topic": "edge computing", "word_count": 50}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.Contains(t, body["warning"], "bad_upstream_status")
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["fallback_used"])
	assert.Equal(t, 50.0, result["word_count"])
	assert.Equal(t, 4.2, result["quality_score"])
	assert.Equal(t, "fallback", result["metadata"].(map[string]any)["provenance"])
	assert.Equal(t, 1, rt.Calls())
}

func TestPostTask_AutoRouting(t *testing.T) {
	rt := &testutil.RecordingTransport{}
	srv := newTestServer(t, ProfileMCPManager, "", rt)

	resp, body := postJSON(t, srv.URL+"/", `{"content_type": "social_media", "definition": "rust"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body["execution_id"].(string), "social_"))
	assert.Equal(t, 4.4, body["result"].(map[string]any)["quality_score"])
	assert.Equal(t, 0, rt.Calls(), "no credential means no outbound call")

	_, body = postJSON(t, srv.URL+"/any/path", `{"content_type": "email_newsletter"}`)
	assert.True(t, strings.HasPrefix(body["execution_id"].(string), "generic_"))
}

func TestPostTask_IntentParse(t *testing.T) {
	rt := &testutil.RecordingTransport{
		Responses: []testutil.Reply{testutil.GeminiText(`{"workflow_type": "blog-post-generation", "topic": "kubernetes", "title": "K8s", "requirements": [], "confidence": 0.95}`)},
	}
	srv := newTestServer(t, ProfileIntentParser, "key", rt)

	resp, body := postJSON(t, srv.URL+"/v1/parse", `{"input": "please write a blog about kubernetes", "user_id": "u-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, "blog-post-generation", result["workflow_type"])
	assert.Equal(t, 0.95, result["confidence"])
	assert.Equal(t, true, result["real_ai_parsing"])
	assert.NotContains(t, result, "quality_score")
	assert.Empty(t, body["warning"])
}

func TestPostTask_IntentMissingInput(t *testing.T) {
	srv := newTestServer(t, ProfileIntentParser, "key", &testutil.RecordingTransport{})

	resp, body := postJSON(t, srv.URL+"/v1/parse", `{"user_id": "u-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "invalid_request", body["error_kind"])
	assert.True(t, strings.HasPrefix(body["execution_id"].(string), "error_"))
}

func TestPostTask_IntentParserUnknownPath(t *testing.T) {
	srv := newTestServer(t, ProfileIntentParser, "key", &testutil.RecordingTransport{})

	resp, body := postJSON(t, srv.URL+"/v2/other", `{"input": "x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "Endpoint not found", body["message"])
	assert.Equal(t, 404.0, body["status_code"])
}

func TestPostTask_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	for _, body := range []string{`{"topic": `, `["a"]`, `null`} {
		resp, out := postJSON(t, srv.URL+"/", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, true, out["error"])
	}
}

func TestPostTask_EmptyBodyUsesDefaults(t *testing.T) {
	srv := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	resp, body := postJSON(t, srv.URL+"/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Contains(t, result["content"], "Understanding AI automation")
}

func TestPostTask_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	big := `{"topic": "` + strings.Repeat("a", maxRequestBodySize) + `"}`
	resp, _ := postJSON(t, srv.URL+"/", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, ProfileIntentParser, "", &testutil.RecordingTransport{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/parse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", resp.Header.Get("Access-Control-Allow-Headers"))
	data, _ := io.ReadAll(resp.Body)
	assert.Empty(t, data)

	getResp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, "*", getResp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, ProfileMCPManager, "", &testutil.RecordingTransport{})

	postJSON(t, srv.URL+"/", `{"topic": "x"}`)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(data), `contentmesh_dispatch_total{kind="content_generation",provenance="fallback",status="completed"} 1`)
	assert.Contains(t, string(data), `contentmesh_primary_failures_total{reason="missing_credentials"} 1`)
}

package gateway

import (
	"net/http"
	"testing"

	"github.com/c360studio/contentmesh/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileMatch(t *testing.T) {
	tests := []struct {
		profile  string
		method   string
		path     string
		endpoint Endpoint
		kind     task.Kind
	}{
		{ProfileMCPManager, http.MethodGet, "/health", EndpointHealth, ""},
		{ProfileMCPManager, http.MethodGet, "/capabilities", EndpointCapabilities, ""},
		{ProfileMCPManager, http.MethodGet, "/whatever", EndpointInfo, ""},
		{ProfileMCPManager, http.MethodPost, "/", EndpointTask, task.KindAuto},
		{ProfileMCPManager, http.MethodPost, "/deep/path", EndpointTask, task.KindAuto},
		{ProfileContentRouter, http.MethodGet, "/services", EndpointServices, ""},
		{ProfileContentRouter, http.MethodGet, "/services/generate-blog", EndpointServiceStatus, ""},
		{ProfileContentRouter, http.MethodGet, "/capabilities", EndpointInfo, ""},
		{ProfileContentRouter, http.MethodPost, "/generate/content", EndpointTask, task.KindAuto},
		{ProfileContentRouter, http.MethodPost, "/generate/blog", EndpointTask, task.KindContentGeneration},
		{ProfileContentRouter, http.MethodPost, "/process/text", EndpointTask, task.KindGeneric},
		{ProfileContentRouter, http.MethodPost, "/other", EndpointTask, task.KindAuto},
		{ProfileIntentParser, http.MethodPost, "/v1/parse", EndpointTask, task.KindIntentParse},
		{ProfileIntentParser, http.MethodPost, "/v1/other", EndpointNotFound, ""},
		{ProfileIntentParser, http.MethodPost, "/", EndpointNotFound, ""},
		{ProfileIntentParser, http.MethodGet, "/v1/parse", EndpointInfo, ""},
	}

	for _, tt := range tests {
		t.Run(tt.profile+" "+tt.method+" "+tt.path, func(t *testing.T) {
			p, ok := LookupProfile(tt.profile)
			require.True(t, ok)

			route, ok := p.Match(tt.method, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.endpoint, route.Endpoint)
			assert.Equal(t, tt.kind, route.Kind)
		})
	}
}

func TestProfileDefaults(t *testing.T) {
	assert.Equal(t, []string{ProfileContentRouter, ProfileIntentParser, ProfileMCPManager}, ProfileNames())

	p, _ := LookupProfile(ProfileIntentParser)
	assert.Equal(t, 8802, p.DefaultPort)
	assert.Equal(t, "INTENT_PARSER", p.EnvPrefix)

	p, _ = LookupProfile(ProfileMCPManager)
	assert.Equal(t, 8803, p.DefaultPort)

	_, ok := LookupProfile("nope")
	assert.False(t, ok)
}

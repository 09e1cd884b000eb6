// Package gateway exposes the dispatcher over HTTP. Each deployment profile
// is a routing table mapping method and path patterns to endpoints.
package gateway

import (
	"net/http"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/contentmesh/task"
)

// Endpoint identifies what a route serves.
type Endpoint string

const (
	EndpointHealth        Endpoint = "health"
	EndpointCapabilities  Endpoint = "capabilities"
	EndpointServices      Endpoint = "services"
	EndpointServiceStatus Endpoint = "service_status"
	EndpointInfo          Endpoint = "info"
	EndpointTask          Endpoint = "task"
	EndpointNotFound      Endpoint = "not_found"
)

// Route binds a method and path pattern to an endpoint. Patterns use
// doublestar syntax; "/**" matches any path.
type Route struct {
	Method      string    `json:"method"`
	Pattern     string    `json:"pattern"`
	Endpoint    Endpoint  `json:"endpoint"`
	Kind        task.Kind `json:"task_kind,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Matches reports whether the route serves method and path.
func (r Route) Matches(method, path string) bool {
	if r.Method != method {
		return false
	}
	ok, err := doublestar.Match(r.Pattern, path)
	return err == nil && ok
}

// Profile is one deployment: its identity, default listener and routes.
type Profile struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	DefaultPort int     `json:"default_port"`
	EnvPrefix   string  `json:"env_prefix"`
	Routes      []Route `json:"routes"`
}

// Match returns the first route that serves method and path.
func (p *Profile) Match(method, path string) (Route, bool) {
	for _, r := range p.Routes {
		if r.Matches(method, path) {
			return r, true
		}
	}
	return Route{}, false
}

// TaskRoutes returns the routes that dispatch tasks.
func (p *Profile) TaskRoutes() []Route {
	var out []Route
	for _, r := range p.Routes {
		if r.Endpoint == EndpointTask {
			out = append(out, r)
		}
	}
	return out
}

// Profile names.
const (
	ProfileMCPManager    = "mcp-manager"
	ProfileContentRouter = "content-router"
	ProfileIntentParser  = "intent-parser"
)

var profiles = map[string]*Profile{
	ProfileMCPManager: {
		Name:        ProfileMCPManager,
		Description: "Content generation routed by content_type",
		DefaultPort: 8803,
		EnvPrefix:   "MCP_MANAGER",
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/health", Endpoint: EndpointHealth, Description: "Service health check"},
			{Method: http.MethodGet, Pattern: "/capabilities", Endpoint: EndpointCapabilities, Description: "Supported content types and limits"},
			{Method: http.MethodGet, Pattern: "/", Endpoint: EndpointInfo, Description: "Service information"},
			{Method: http.MethodGet, Pattern: "/**", Endpoint: EndpointInfo},
			{Method: http.MethodPost, Pattern: "/", Endpoint: EndpointTask, Kind: task.KindAuto, Description: "Generate content"},
			{Method: http.MethodPost, Pattern: "/**", Endpoint: EndpointTask, Kind: task.KindAuto},
		},
	},
	ProfileContentRouter: {
		Name:        ProfileContentRouter,
		Description: "Content generation with task-specific paths",
		DefaultPort: 8803,
		EnvPrefix:   "MCP_MANAGER",
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/health", Endpoint: EndpointHealth, Description: "Service health check"},
			{Method: http.MethodGet, Pattern: "/services", Endpoint: EndpointServices, Description: "List generation services"},
			{Method: http.MethodGet, Pattern: "/services/*", Endpoint: EndpointServiceStatus, Description: "Status of one service"},
			{Method: http.MethodGet, Pattern: "/", Endpoint: EndpointInfo, Description: "Service information"},
			{Method: http.MethodGet, Pattern: "/**", Endpoint: EndpointInfo},
			{Method: http.MethodPost, Pattern: "/generate/content", Endpoint: EndpointTask, Kind: task.KindAuto, Description: "Generate content by content_type"},
			{Method: http.MethodPost, Pattern: "/generate/blog", Endpoint: EndpointTask, Kind: task.KindContentGeneration, Description: "Generate a blog post"},
			{Method: http.MethodPost, Pattern: "/process/text", Endpoint: EndpointTask, Kind: task.KindGeneric, Description: "Generate generic text"},
			{Method: http.MethodPost, Pattern: "/", Endpoint: EndpointTask, Kind: task.KindAuto},
			{Method: http.MethodPost, Pattern: "/**", Endpoint: EndpointTask, Kind: task.KindAuto},
		},
	},
	ProfileIntentParser: {
		Name:        ProfileIntentParser,
		Description: "Workflow intent parsing",
		DefaultPort: 8802,
		EnvPrefix:   "INTENT_PARSER",
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/health", Endpoint: EndpointHealth, Description: "Service health check"},
			{Method: http.MethodGet, Pattern: "/", Endpoint: EndpointInfo, Description: "Service information"},
			{Method: http.MethodGet, Pattern: "/**", Endpoint: EndpointInfo},
			{Method: http.MethodPost, Pattern: "/v1/parse", Endpoint: EndpointTask, Kind: task.KindIntentParse, Description: "Parse user intent"},
			{Method: http.MethodPost, Pattern: "/", Endpoint: EndpointNotFound},
			{Method: http.MethodPost, Pattern: "/**", Endpoint: EndpointNotFound},
		},
	},
}

// LookupProfile returns the named profile.
func LookupProfile(name string) (*Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ProfileNames returns all profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

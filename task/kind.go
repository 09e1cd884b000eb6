// Package task defines the canonical, transport-independent description of an
// inbound content or intent request and the normalizer that produces it.
package task

import "strings"

// Kind identifies which resolution chain and fallback template apply to a request.
type Kind string

const (
	// KindContentGeneration is long-form blog or article content.
	KindContentGeneration Kind = "content_generation"

	// KindIntentParse extracts a workflow intent from free text.
	KindIntentParse Kind = "intent_parse"

	// KindSocialPost is a short social media post.
	KindSocialPost Kind = "social_post"

	// KindGeneric is general-purpose content with a smaller default size.
	KindGeneric Kind = "generic"

	// KindAuto is only valid on routes. The concrete kind is derived from
	// the payload's content_type field.
	KindAuto Kind = "auto"
)

// IsValid reports whether k is a concrete task kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindContentGeneration, KindIntentParse, KindSocialPost, KindGeneric:
		return true
	}
	return false
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IDPrefix returns the execution id prefix for requests of this kind.
func (k Kind) IDPrefix() string {
	switch k {
	case KindContentGeneration:
		return "content"
	case KindIntentParse:
		return "intent"
	case KindSocialPost:
		return "social"
	case KindGeneric:
		return "generic"
	}
	return "task"
}

// ParseKind converts a string to a Kind, returning empty for unknown values.
// "auto" is accepted so routing tables can be loaded from configuration.
func ParseKind(s string) Kind {
	k := Kind(strings.TrimSpace(s))
	if k.IsValid() || k == KindAuto {
		return k
	}
	return ""
}

// Kinds returns all concrete task kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindContentGeneration, KindSocialPost, KindGeneric, KindIntentParse}
}

// Content types understood by KindFromContentType.
const (
	ContentTypeBlogPost    = "blog_post"
	ContentTypeSocialMedia = "social_media"
	ContentTypeGeneric     = "generic"
)

// KindFromContentType maps a payload content_type to a task kind.
// An empty content type means blog_post.
func KindFromContentType(contentType string) Kind {
	switch strings.TrimSpace(contentType) {
	case "", ContentTypeBlogPost:
		return KindContentGeneration
	case ContentTypeSocialMedia:
		return KindSocialPost
	default:
		return KindGeneric
	}
}

// ResolveKind returns the concrete kind for a route kind and payload.
// Non-string content_type values are treated as absent.
func ResolveKind(routeKind Kind, payload map[string]any) Kind {
	if routeKind != KindAuto && routeKind != "" {
		return routeKind
	}
	contentType, _ := payload["content_type"].(string)
	return KindFromContentType(contentType)
}

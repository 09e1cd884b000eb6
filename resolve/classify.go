package resolve

import "strings"

// Workflow types produced by intent parsing.
const (
	WorkflowBlogPost = "blog-post-generation"
	WorkflowImage    = "image-generation"
	WorkflowContent  = "content-generation"
)

// keywordRule maps any matching keyword to a workflow type. Rules are checked
// in order and the first match wins.
type keywordRule struct {
	keywords []string
	workflow string
}

var intentRules = []keywordRule{
	{keywords: []string{"blog", "post", "article", "write"}, workflow: WorkflowBlogPost},
	{keywords: []string{"image", "picture", "photo"}, workflow: WorkflowImage},
}

// ClassifyIntent picks a workflow type from keywords in the input.
// Matching is case-insensitive substring membership.
func ClassifyIntent(input string) string {
	lower := strings.ToLower(input)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.workflow
			}
		}
	}
	return WorkflowContent
}

// FunctionForWorkflow returns the downstream function name for a workflow type.
func FunctionForWorkflow(workflow string) string {
	switch workflow {
	case WorkflowBlogPost:
		return "create_blog_post"
	case WorkflowImage:
		return "create_image"
	default:
		return "create_content"
	}
}

package resolve

import (
	"fmt"

	"github.com/c360studio/contentmesh/task"
)

// PromptForTask returns the user prompt sent to the provider for a task.
func PromptForTask(t task.Task) string {
	switch t.Kind {
	case task.KindIntentParse:
		return IntentParsePrompt(t.RawInput)
	case task.KindSocialPost:
		return SocialPostPrompt(t.Subject)
	case task.KindGeneric:
		return ArticlePrompt(t.Subject, t.TargetSize)
	default:
		return BlogPostPrompt(t.Subject, t.TargetSize)
	}
}

// SystemForTask returns the optional system instruction for a task.
func SystemForTask(t task.Task) string {
	if t.Kind == task.KindIntentParse {
		return "You extract workflow intents from user requests. Respond with a single JSON object and nothing else."
	}
	return ""
}

// BlogPostPrompt asks for a long-form HTML blog post.
func BlogPostPrompt(subject string, words int) string {
	return fmt.Sprintf(`Write a comprehensive blog post about "%s".
Target length: approximately %d words.

Requirements:
- Professional, engaging tone
- Include practical insights and actionable advice
- Structure with clear headings and bullet points
- Focus on real-world applications and benefits
- Include a compelling introduction and conclusion

Format the response as clean HTML with proper headings (h2, h3), paragraphs, and lists.
Return only the HTML, without markdown code fences.`, subject, words)
}

// ArticlePrompt asks for a general-purpose HTML article.
func ArticlePrompt(subject string, words int) string {
	return fmt.Sprintf(`Write an informative article about "%s".
Target length: approximately %d words.

Requirements:
- Clear, neutral tone
- Explain the key concepts before the details
- Use headings to separate sections

Format the response as clean HTML with proper headings (h2, h3), paragraphs, and lists.
Return only the HTML, without markdown code fences.`, subject, words)
}

// SocialPostPrompt asks for a short social media post.
func SocialPostPrompt(subject string) string {
	return fmt.Sprintf(`Write a short social media post about "%s".

Requirements:
- At most 60 words
- An opening hook and three or four key takeaways
- End with four relevant hashtags

Return only the post text.`, subject)
}

// IntentParsePrompt asks the provider to classify a user request.
func IntentParsePrompt(input string) string {
	return fmt.Sprintf(`Analyze this user request and extract the intent for workflow creation:

User Request: %s

Please identify:
1. The main workflow type (blog-post-generation, image-generation, content-generation)
2. The specific topic or subject matter
3. Any special requirements or preferences
4. Suggested title for the content

Respond in this JSON format:
{
    "workflow_type": "blog-post-generation",
    "topic": "extracted topic",
    "title": "suggested title",
    "requirements": ["requirement1", "requirement2"],
    "confidence": 0.95
}`, input)
}

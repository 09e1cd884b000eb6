package resolve

import (
	"fmt"
	"strings"
)

// extendThreshold is the fraction of the target below which the
// additional section is appended.
const extendThreshold = 0.8

func contentTemplate(subject string) string {
	return fmt.Sprintf(`<h2>Understanding %[1]s: A Comprehensive Guide</h2>

<p>The field of %[1]s represents a significant opportunity for organizations looking to enhance their capabilities and drive meaningful results. This comprehensive overview explores the key aspects that professionals need to understand.</p>

<h3>Key Benefits and Opportunities</h3>

<ul>
<li><strong>Enhanced Efficiency</strong>: Streamline processes and reduce manual overhead</li>
<li><strong>Improved Quality</strong>: Achieve more consistent and reliable outcomes</li>
<li><strong>Strategic Advantage</strong>: Gain competitive positioning in the marketplace</li>
<li><strong>Innovation Catalyst</strong>: Enable new approaches and solutions</li>
</ul>

<h3>Implementation Considerations</h3>

<p>Successful implementation of %[1]s requires careful planning and strategic thinking. Organizations should consider their unique requirements, existing infrastructure, and long-term objectives when developing their approach.</p>

<h3>Best Practices</h3>

<p>Industry leaders recommend focusing on:</p>

<ol>
<li><strong>Clear Goal Setting</strong>: Define specific, measurable objectives</li>
<li><strong>Stakeholder Engagement</strong>: Ensure buy-in across the organization</li>
<li><strong>Iterative Development</strong>: Start small and scale progressively</li>
<li><strong>Continuous Learning</strong>: Adapt based on results and feedback</li>
</ol>

<h3>Future Outlook</h3>

<p>The landscape of %[1]s continues to evolve rapidly, creating new opportunities for forward-thinking organizations. Those who invest in understanding and implementing these concepts strategically will be well-positioned for long-term success.</p>

<h3>Conclusion</h3>

<p>%[1]s offers significant potential for organizations ready to embrace change and innovation. By following proven best practices and maintaining focus on value creation, businesses can achieve meaningful and sustainable improvements in their operations and outcomes.</p>`, subject)
}

func additionalSection(subject string) string {
	return fmt.Sprintf(`

<h3>Additional Insights</h3>

<p>Research shows that organizations implementing %[1]s strategies report significant improvements in operational efficiency and customer satisfaction. The key is to approach implementation systematically, with clear metrics for success and regular review processes.</p>

<p>As the field continues to mature, new tools and methodologies are emerging that make implementation more accessible and effective. Staying current with these developments is essential for maximizing the value of your investment in %[1]s.</p>`, subject)
}

func socialTemplate(subject string) string {
	return fmt.Sprintf(`🚀 Exciting insights on %s!

Key takeaways:
✨ Innovation drives transformation
📈 Strategic implementation yields results
🎯 Focus on value creation
💡 Embrace change for competitive advantage

#AI #Innovation #Technology #BusinessGrowth`, subject)
}

// fitToTarget applies the word-count contract to generated HTML.
// Text longer than target words is cut to exactly target words and closed
// with "</p>". Text shorter than 80% of target gets the additional section
// appended once. A non-positive target leaves the text unchanged.
func fitToTarget(body, subject string, target int) string {
	if target <= 0 {
		return body
	}

	words := strings.Fields(body)
	switch {
	case len(words) > target:
		return strings.Join(words[:target], " ") + "</p>"
	case float64(len(words)) < extendThreshold*float64(target):
		return body + additionalSection(subject)
	default:
		return body
	}
}

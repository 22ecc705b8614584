package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertlens/pkg/models"
)

var items = []models.Takeaway{
	{Title: "Credential Theft", What: "LSASS was read.", Impact: "Accounts at risk.", Mitigation: "Enable Credential Guard."},
	{Title: "<script>alert(1)</script>", What: "Tom & Jerry", Impact: `"quoted"`, Mitigation: "use <b>MFA</b>"},
}

func TestText(t *testing.T) {
	want := "1. Credential Theft\n" +
		"- What this means: LSASS was read.\n" +
		"- What impact: Accounts at risk.\n" +
		"- How to mitigate: Enable Credential Guard.\n" +
		"\n" +
		"2. <script>alert(1)</script>\n" +
		"- What this means: Tom & Jerry\n" +
		"- What impact: \"quoted\"\n" +
		"- How to mitigate: use <b>MFA</b>\n"
	assert.Equal(t, want, Text(items))
	assert.Equal(t, "", Text(nil))
}

func TestHTMLEscapesFreeText(t *testing.T) {
	html, err := HTML(items)
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, html, "Tom &amp; Jerry")
	assert.Contains(t, html, "use &lt;b&gt;MFA&lt;/b&gt;")
	assert.Contains(t, html, "<title>Top 2 Security Takeaways</title>")
	assert.Contains(t, html, "<h1>Key Security Takeaways</h1>")
}

func TestHTMLKeepsInputOrder(t *testing.T) {
	html, err := HTML(items)
	require.NoError(t, err)

	first := strings.Index(html, "<h2>1. Credential Theft</h2>")
	second := strings.Index(html, "<h2>2. &lt;script&gt;")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	assert.Less(t, strings.Index(html, "What this means:</strong> LSASS"), strings.Index(html, "What impact:</strong> Accounts"))
}

func TestRender(t *testing.T) {
	plain, html, err := Render(items)
	require.NoError(t, err)
	for _, it := range items[:1] {
		for _, s := range []string{it.Title, it.What, it.Impact, it.Mitigation} {
			assert.Contains(t, plain, s)
			assert.Contains(t, html, s)
		}
	}
}

package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdCodeBlockRe  = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	mdInlineCodeRe = regexp.MustCompile(`<code>([^<]+)</code>`)
	mdHeadingRe    = regexp.MustCompile(`<h[1-6][^>]*>(.*?)</h[1-6]>`)
	mdStrongRe     = regexp.MustCompile(`<strong>(.*?)</strong>`)
	mdEmRe         = regexp.MustCompile(`<em>(.*?)</em>`)
	mdLinkRe       = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	mdListItemRe   = regexp.MustCompile(`<li>(.*?)</li>`)
	mdTagRe        = regexp.MustCompile(`<[^>]+>`)
	mdBlankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// MarkdownRenderer converts assistant markdown into styled terminal text,
// with chroma highlighting for fenced code blocks.
type MarkdownRenderer struct {
	md        goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
	theme     Theme
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithRendererOptions(html.WithHardWraps()),
			goldmark.WithExtensions(extension.GFM),
		),
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("monokai"),
		theme:     theme,
	}
}

// Render returns the terminal form of content. On any conversion failure the
// raw markdown is returned; a chat message must never disappear.
func (r *MarkdownRenderer) Render(content string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.toTerminal(buf.String())
}

func (r *MarkdownRenderer) toTerminal(htmlText string) string {
	out := htmlText

	// Code blocks are lifted out first so later transforms cannot touch
	// highlighted output.
	var codeBlocks []string
	out = mdCodeBlockRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdCodeBlockRe.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		highlighted := r.highlight(decodeHTMLEntities(parts[2]), parts[1])
		idx := len(codeBlocks)
		codeBlocks = append(codeBlocks, "\n"+strings.TrimRight(highlighted, "\n")+"\n")
		return fmt.Sprintf("{{code-%d}}", idx)
	})

	inlineStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	out = mdInlineCodeRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdInlineCodeRe.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return inlineStyle.Render("`" + decodeHTMLEntities(parts[1]) + "`")
	})

	headingStyle := lipgloss.NewStyle().Bold(true).Foreground(r.theme.Accent)
	out = mdHeadingRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdHeadingRe.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return headingStyle.Render(mdTagRe.ReplaceAllString(parts[1], "")) + "\n"
	})

	boldStyle := lipgloss.NewStyle().Bold(true)
	out = mdStrongRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdStrongRe.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return boldStyle.Render(parts[1])
	})

	italicStyle := lipgloss.NewStyle().Italic(true)
	out = mdEmRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdEmRe.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return italicStyle.Render(parts[1])
	})

	linkStyle := lipgloss.NewStyle().Underline(true).Foreground(r.theme.Accent)
	out = mdLinkRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdLinkRe.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		if parts[1] == parts[2] {
			return linkStyle.Render(parts[1])
		}
		return linkStyle.Render(parts[2]) + " (" + parts[1] + ")"
	})

	out = mdListItemRe.ReplaceAllString(out, "  • $1\n")

	out = strings.ReplaceAll(out, "</p>", "\n")
	out = mdTagRe.ReplaceAllString(out, "")
	out = decodeHTMLEntities(out)
	out = mdBlankRunRe.ReplaceAllString(out, "\n\n")

	for i, block := range codeBlocks {
		out = strings.Replace(out, fmt.Sprintf("{{code-%d}}", i), block, 1)
	}
	return strings.TrimSpace(out)
}

func (r *MarkdownRenderer) highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
		"&amp;", "&",
	)
	return replacer.Replace(s)
}

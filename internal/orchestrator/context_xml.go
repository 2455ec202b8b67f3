package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildSourceSetXML renders the XML-tagged <source_set> context handed to
// the generate node, per spec.md §4.8. All payload fields are XML-escaped;
// an empty source list renders the self-closing empty form.
func BuildSourceSetXML(sources []RankedSource) string {
	if len(sources) == 0 {
		return `<source_set empty="true" />`
	}

	var b strings.Builder
	b.WriteString("<source_set>\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "  <source id=%q document_id=%q document_name=%q chunk_index=%q>\n",
			escapeAttr(s.SourceID), escapeAttr(s.DocumentID), escapeAttr(s.DocumentName), strconv.Itoa(s.ChunkIndex))
		if s.ContextHeader != "" {
			fmt.Fprintf(&b, "    <context_header>%s</context_header>\n", escapeText(s.ContextHeader))
		}
		fmt.Fprintf(&b, "    <chunk_text>%s</chunk_text>\n", escapeText(s.ChunkText))
		b.WriteString("  </source>\n")
	}
	b.WriteString("</source_set>")
	return b.String()
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

package acquisition

import (
	"bytes"
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/JaimeStill/docintel/internal/document"
)

// decode converts raw bytes to text, falling back to ISO-8859-1 when the
// content is not valid UTF-8. A UTF-8 byte order mark is dropped.
func decode(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

// normalize converts decoded content to readable plain text for its media type.
func normalize(mediaType, content string) string {
	switch mediaType {
	case document.MediaHTML, "application/xhtml+xml":
		return stripHTML(content)
	case document.MediaXML:
		return stripXML(content)
	case document.MediaRTF:
		return stripRTF(content)
	case document.MediaJSON:
		return indentJSON(content)
	default:
		return strings.TrimSpace(content)
	}
}

var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	comments          = regexp.MustCompile(`(?s)<!--.*?-->`)
	closeBlock        = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlock         = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	lineBreaks        = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	anyTag            = regexp.MustCompile(`<[^>]+>`)
	xmlDecl           = regexp.MustCompile(`(?s)<\?.*?\?>`)
	cdata             = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	runsOfSpace       = regexp.MustCompile(`[ \t]+`)
	rtfDestination    = regexp.MustCompile(`\{\\(?:fonttbl|colortbl|stylesheet|info|pict)(?:[^{}]|\{[^{}]*\})*\}`)
	rtfBreak          = regexp.MustCompile(`\\(par|line)\b ?`)
	rtfControlWord    = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?`)
	rtfControlSymbol  = regexp.MustCompile(`\\[^a-zA-Z\s]`)
	rtfIgnorableGroup = regexp.MustCompile(`(?s)\{\\\*[^{}]*\}`)
	rtfHexEscape      = regexp.MustCompile(`\\'([0-9a-fA-F]{2})`)
)

func stripHTML(content string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, comments} {
		content = re.ReplaceAllString(content, "")
	}
	content = openBlock.ReplaceAllString(content, "\n")
	content = closeBlock.ReplaceAllString(content, "\n")
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	return compactLines(content)
}

func stripXML(content string) string {
	content = xmlDecl.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")
	content = cdata.ReplaceAllString(content, "$1")
	content = anyTag.ReplaceAllString(content, "\n")
	content = html.UnescapeString(content)
	return compactLines(content)
}

func stripRTF(content string) string {
	content = rtfIgnorableGroup.ReplaceAllString(content, "")
	content = rtfDestination.ReplaceAllString(content, "")
	content = rtfBreak.ReplaceAllString(content, "\n")
	content = rtfHexEscape.ReplaceAllStringFunc(content, func(m string) string {
		b, ok := hexByte(m[2:])
		if !ok {
			return ""
		}
		return decode([]byte{b})
	})
	content = rtfControlWord.ReplaceAllString(content, "")
	content = rtfControlSymbol.ReplaceAllString(content, "")
	content = strings.NewReplacer("{", "", "}", "").Replace(content)
	return compactLines(content)
}

func indentJSON(content string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(content), "", "  "); err != nil {
		return strings.TrimSpace(content)
	}
	return buf.String()
}

func compactLines(content string) string {
	content = runsOfSpace.ReplaceAllString(content, " ")
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func hexByte(s string) (byte, bool) {
	var b byte
	for _, c := range []byte(s) {
		b <<= 4
		switch {
		case c >= '0' && c <= '9':
			b |= c - '0'
		case c >= 'a' && c <= 'f':
			b |= c - 'a' + 10
		case c >= 'A' && c <= 'F':
			b |= c - 'A' + 10
		default:
			return 0, false
		}
	}
	return b, true
}

package scraper

import (
	"net/url"
	"strings"
)

// keywordReplacer percent-encodes characters that are unsafe in a URL path
// or query. Space becomes '+'. Replacement is single-pass, so the '%' of an
// inserted escape is never escaped again.
var keywordReplacer = strings.NewReplacer(
	"%", "%25", "/", "%2F", "?", "%3F", "'", "%27", ";", "%3B", ":", "%3A",
	"[", "%5B", "]", "%5D", "{", "%7B", "}", "%7D", "|", "%7C", `\`, "%5C",
	"`", "%60", "!", "%21", "@", "%40", "#", "%23", "$", "%24", ",", "%2C",
	"^", "%5E", "&", "%26", "(", "%28", ")", "%29", "=", "%3D", "+", "%2B",
	" ", "+",
)

// Normalize escapes a free-text search term for embedding in a query string.
func Normalize(keyword string) string {
	return keywordReplacer.Replace(keyword)
}

// queryParam is the form of a normalized keyword placed in a request URL.
func queryParam(normalized string) string {
	return url.QueryEscape(normalized)
}

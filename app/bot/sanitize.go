package bot

import "regexp"

var (
	mentionRe = regexp.MustCompile(`@(\w+)`)
	urlRe     = regexp.MustCompile(`https?://(\S+)`)
	// common TLDs, first occurrence stripped from reported URLs
	tldRe = regexp.MustCompile(`\.com|\.org|\.net|\.ru|\.de|\.jp|\.uk|\.br|\.pl|\.in|\.it|\.fr|\.au|\.info|\.cn|\.nl|\.eu|\.biz|\.za|\.io`)
)

// Sanitize neuters user content before it goes to the audit channel: strips
// '@' from mentions so nobody gets pinged, and drops the scheme and the first
// TLD from URLs so reported links are not clickable.
func Sanitize(msg string) string {
	res := mentionRe.ReplaceAllString(msg, "$1")
	res = urlRe.ReplaceAllStringFunc(res, func(m string) string {
		url := urlRe.FindStringSubmatch(m)[1]
		if loc := tldRe.FindStringIndex(url); loc != nil {
			url = url[:loc[0]] + url[loc[1]:]
		}
		return url
	})
	return res
}

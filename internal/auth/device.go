package auth

import "strings"

var deviceClasses = []struct {
	needle string
	label  string
}{
	{"mobile", "Mobile"},
	{"tablet", "Tablet"},
	{"iphone", "iPhone"},
	{"ipad", "iPad"},
	{"android", "Android"},
	{"windows", "Windows"},
	{"macintosh", "Mac"},
	{"linux", "Linux"},
}

// ClassifyDevice buckets a user agent. The first matching class wins; an empty user agent
// has no class.
func ClassifyDevice(userAgent string) *string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return nil
	}
	for _, class := range deviceClasses {
		if strings.Contains(ua, class.needle) {
			label := class.label
			return &label
		}
	}
	label := "Desktop"
	return &label
}

package srvdrv

import (
	"errors"
	"os"
	"regexp"
	"strings"
)

var percentVar = regexp.MustCompile(`%([^%]+)%`)

// ImageDir returns the directory containing the executable named by an
// image path as stored by the OS. Surrounding quotes and trailing
// arguments are removed, the NT-style \SystemRoot\ and \??\ prefixes are
// normalized, and %VAR% and $VAR references are expanded from the
// environment.
func ImageDir(imagePath string) (string, error) {
	p := executablePath(imagePath)
	if p == "" {
		return "", errors.New("srvdrv: empty image path")
	}

	switch {
	case hasPrefixFold(p, `\SystemRoot\`):
		p = `%SystemRoot%\` + p[len(`\SystemRoot\`):]
	case strings.HasPrefix(p, `\??\`):
		p = p[len(`\??\`):]
	case hasPrefixFold(p, `System32\`):
		// Drivers are often registered relative to the Windows directory.
		p = `%SystemRoot%\` + p
	}

	p = expandEnv(p)

	i := strings.LastIndexAny(p, `\/`)
	switch {
	case i < 0:
		return "", errors.New("srvdrv: image path has no directory: " + imagePath)
	case i == 0:
		return p[:1], nil
	default:
		return p[:i], nil
	}
}

// executablePath strips quotes and arguments from a command line
func executablePath(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		if end := strings.Index(s[1:], `"`); end >= 0 {
			return s[1 : end+1]
		}
		return strings.Trim(s, `"`)
	}
	// Unquoted paths may contain spaces; arguments start with - or /.
	for _, sep := range []string{" -", " /"} {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	return s
}

func expandEnv(s string) string {
	s = percentVar.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := os.LookupEnv(m[1 : len(m)-1]); ok {
			return v
		}
		return m
	})
	if strings.Contains(s, "$") {
		s = os.ExpandEnv(s)
	}
	return s
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

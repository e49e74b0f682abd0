// Package session loads a pre-authenticated Battlelog session from a
// Netscape-format cookies.txt export (the format written by the
// "Get cookies.txt" browser extension).
package session

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Required AJAX headers. Battlelog only serves JSON when the request looks
// like the site's own XHR traffic.
const (
	headerAjaxNavigation = "X-AjaxNavigation"
	headerRequestedWith  = "X-Requested-With"
)

// Session carries the cookies and headers applied to every request.
type Session struct {
	Cookies map[string]string
	Headers map[string]string
}

// DefaultHeaders returns the headers Battlelog requires for JSON responses.
func DefaultHeaders() map[string]string {
	return map[string]string{
		headerAjaxNavigation: "1",
		headerRequestedWith:  "XMLHttpRequest",
	}
}

// LoadCookieFile parses a Netscape cookies.txt file and returns a Session
// with the default Battlelog headers attached.
func LoadCookieFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	cookies := make(map[string]string)

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Browser exports prefix HttpOnly cookies with "#HttpOnly_";
		// those are real cookies, not comments.
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return nil, fmt.Errorf("cookie file %s: malformed line %d (%d fields, want 7)", path, lineNum, len(fields))
		}

		name := fields[5]
		value := fields[6]
		if name == "" {
			continue
		}
		cookies[name] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookie file %s contains no cookies", path)
	}

	return &Session{
		Cookies: cookies,
		Headers: DefaultHeaders(),
	}, nil
}

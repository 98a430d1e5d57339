// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values are masked before
// a URL is written to logs.
var sensitiveParams = []string{"token", "key", "secret", "password", "signature", "auth"}

// RedactURL returns a loggable form of the URL with any embedded userinfo
// and credential-bearing query parameters masked. Unparseable input is
// returned as a fixed placeholder rather than leaked verbatim.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}

	if u.User != nil {
		u.User = url.User("redacted")
	}

	q := u.Query()
	changed := false
	for name := range q {
		lower := strings.ToLower(name)
		for _, s := range sensitiveParams {
			if strings.Contains(lower, s) {
				q.Set(name, "redacted")
				changed = true
				break
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

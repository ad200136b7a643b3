package irc

import "strings"

// IsWM reports whether text matches the IRC wildcard expression wildText, per
// https://modern.ircdocs.horse/#wildcard-expressions: '?' matches exactly one
// character, '*' matches any run of zero or more characters, and either can
// be escaped with a leading '\'. Matching is ASCII case-insensitive, which is
// sufficient for the host/nick masks this is used against (ban and ignore
// patterns); full server-declared case mapping is not applied here.
func IsWM(wildText, text string) bool {
	return wildcardMatch(foldASCII(wildText), foldASCII(text))
}

func foldASCII(s string) string {
	return strings.ToLower(s)
}

// wildcardMatch is a standard greedy/backtracking glob matcher over runes,
// supporting '?', '*', and '\' as an escape for a literal following rune.
func wildcardMatch(wild, text string) bool {
	w := []rune(wild)
	t := []rune(text)

	var wi, ti int
	var starIdx = -1
	var matchIdx int

	for ti < len(t) {
		if wi < len(w) && w[wi] == '\\' && wi+1 < len(w) {
			if w[wi+1] == t[ti] {
				wi += 2
				ti++
				continue
			}
		} else if wi < len(w) && (w[wi] == '?' || w[wi] == t[ti]) {
			wi++
			ti++
			continue
		} else if wi < len(w) && w[wi] == '*' {
			starIdx = wi
			matchIdx = ti
			wi++
			continue
		}

		if starIdx != -1 {
			wi = starIdx + 1
			matchIdx++
			ti = matchIdx
			continue
		}
		return false
	}

	for wi < len(w) && w[wi] == '*' {
		wi++
	}
	return wi == len(w)
}

// Mask reduces a full nick!user@host address to a ban/ignore-style mask:
// the nick is replaced with '*' and the host's leftmost label is replaced
// with '*', following the convention used by *!*user@*.host-style bans.
// Addresses without both a user and host component are returned unchanged.
func Mask(fulladdress string) string {
	_, rest, hasUser := strings.Cut(fulladdress, "!")
	if !hasUser {
		return fulladdress
	}
	user, host, hasHost := strings.Cut(rest, "@")
	if !hasHost || user == "" || host == "" {
		return fulladdress
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		host = "*" + host[i:]
	} else {
		host = "*"
	}
	return "*!*" + user + "@" + host
}

// Package mode implements the mode engine: parsing a server's ISUPPORT
// CHANMODES/PREFIX/CHANTYPES/MODES declarations into a Config, and applying
// a MODE command's "+abc-de args..." delta against a channel's mode vector
// and its members' prefix-mode vectors.
//
// The CHANMODES A/B/C/D split (types A="beI" B="k" C="l" D="psitnm") is the
// default ISUPPORT declares when a server never sends one explicitly.
package mode

import (
	"sort"
	"strconv"
	"strings"

	"github.com/imdario/mergo"
)

// Vector is a 52-bit set of mode letters, one bit per a-z and A-Z.
type Vector uint64

func bitFor(c byte) (uint, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return uint(c - 'a'), true
	case c >= 'A' && c <= 'Z':
		return uint(26 + c - 'A'), true
	default:
		return 0, false
	}
}

// Set returns v with letter c added.
func (v Vector) Set(c byte) Vector {
	if bit, ok := bitFor(c); ok {
		return v | (1 << bit)
	}
	return v
}

// Clear returns v with letter c removed.
func (v Vector) Clear(c byte) Vector {
	if bit, ok := bitFor(c); ok {
		return v &^ (1 << bit)
	}
	return v
}

// Has reports whether letter c is set in v.
func (v Vector) Has(c byte) bool {
	bit, ok := bitFor(c)
	return ok && v&(1<<bit) != 0
}

// Letters returns every set letter in ascii alphabetical order (uppercase
// before its lowercase counterpart does not apply here: plain byte order,
// so 'A'..'Z' sort before 'a'..'z').
func (v Vector) Letters() []byte {
	var out []byte
	for c := byte('A'); c <= 'Z'; c++ {
		if v.Has(c) {
			out = append(out, c)
		}
	}
	for c := byte('a'); c <= 'z'; c++ {
		if v.Has(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders v's letters in alphabetical order, with no leading "+", or
// "" if v is empty.
func (v Vector) String() string {
	letters := v.Letters()
	if len(letters) == 0 {
		return ""
	}
	return string(letters)
}

// Class identifies which of the four ISUPPORT CHANMODES argument-arity
// classes a channel-mode letter belongs to.
type Class int

const (
	// Unknown means the letter is not declared by the active config at all.
	Unknown Class = iota
	// ListMode (CHANMODES class A): always takes a parameter, on both set
	// and unset (e.g. ban list "b").
	ListMode
	// ParamMode (class B): mandatory parameter on both set and unset (e.g.
	// channel key "k").
	ParamMode
	// SetParamMode (class C): parameter only when setting (e.g. limit "l").
	SetParamMode
	// NoParamMode (class D): never takes a parameter (e.g. "n").
	NoParamMode
	// StatusMode is a PREFIX letter (e.g. "o", "v"): always takes a
	// parameter (the target nick) on both set and unset.
	StatusMode
)

// Config is a server's mode configuration, derived from 004/005 over a set
// of historical IRC defaults.
type Config struct {
	ChanTypes string // CHANTYPES, default "#&"
	ModesMax  int    // MODES, default 3

	ListModes     string // CHANMODES class A
	ParamModes    string // CHANMODES class B
	SetParamModes string // CHANMODES class C
	NoParamModes  string // CHANMODES class D

	// PrefixModes and PrefixSigils are parallel: PrefixModes[i] maps to
	// PrefixSigils[i]. Index order is PREFIX's declared precedence,
	// leftmost highest (e.g. "o" before "v" means op outranks voice).
	PrefixModes  string
	PrefixSigils string

	UserModes string // usermodes from 004
}

// Default returns the historical IRC defaults assumed before a server's 005
// is processed: the conventional CHANMODES split plus @%+ PREFIX=(ohv).
func Default() Config {
	return Config{
		ChanTypes:     "#&",
		ModesMax:      3,
		ListModes:     "beI",
		ParamModes:    "k",
		SetParamModes: "l",
		NoParamModes:  "psitnm",
		PrefixModes:   "ohv",
		PrefixSigils:  "@%+",
	}
}

// ClassOf classifies letter against c.
func (c Config) ClassOf(letter byte) Class {
	switch {
	case strings.IndexByte(c.PrefixModes, letter) >= 0:
		return StatusMode
	case strings.IndexByte(c.ListModes, letter) >= 0:
		return ListMode
	case strings.IndexByte(c.ParamModes, letter) >= 0:
		return ParamMode
	case strings.IndexByte(c.SetParamModes, letter) >= 0:
		return SetParamMode
	case strings.IndexByte(c.NoParamModes, letter) >= 0:
		return NoParamMode
	default:
		return Unknown
	}
}

// Sigil returns the status sigil for a PREFIX letter, or 0 if letter is not
// a PREFIX letter.
func (c Config) Sigil(letter byte) byte {
	i := strings.IndexByte(c.PrefixModes, letter)
	if i < 0 || i >= len(c.PrefixSigils) {
		return 0
	}
	return c.PrefixSigils[i]
}

// precedence returns letter's index in PrefixModes (lower is higher rank),
// or -1 if it is not a PREFIX letter.
func (c Config) precedence(letter byte) int {
	return strings.IndexByte(c.PrefixModes, letter)
}

// SortPrefix sorts letters (all assumed PREFIX letters of c) into
// precedence order, highest rank first.
func (c Config) SortPrefix(letters []byte) {
	sort.Slice(letters, func(i, j int) bool {
		return c.precedence(letters[i]) < c.precedence(letters[j])
	})
}

// tokenOverride is the subset of Config that 005 ISUPPORT tokens populate;
// ParseISUPPORT merges only the tokens actually present onto a base
// (normally Default()).
type tokenOverride struct {
	ChanTypes     string
	ModesMax      int
	ListModes     string
	ParamModes    string
	SetParamModes string
	NoParamModes  string
	PrefixModes   string
	PrefixSigils  string
	UserModes     string
}

// ParseISUPPORT merges the given 005 tokens onto base (normally Default())
// and returns the resulting Config. Unrecognised tokens are accepted
// silently and ignored. Malformed CHANMODES or PREFIX values leave the
// corresponding base fields untouched rather than producing a partially
// parsed config.
func ParseISUPPORT(base Config, tokens map[string]string) Config {
	var override tokenOverride

	if v, ok := tokens["CHANTYPES"]; ok && v != "" {
		override.ChanTypes = v
	}
	if v, ok := tokens["MODES"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			override.ModesMax = n
		}
	}
	if v, ok := tokens["CHANMODES"]; ok {
		parts := strings.SplitN(v, ",", 4)
		if len(parts) == 4 {
			override.ListModes, override.ParamModes = parts[0], parts[1]
			override.SetParamModes, override.NoParamModes = parts[2], parts[3]
		}
	}
	if v, ok := tokens["PREFIX"]; ok {
		if letters, sigils, ok := splitPrefix(v); ok {
			override.PrefixModes, override.PrefixSigils = letters, sigils
		}
	}
	if v, ok := tokens["USERMODES"]; ok {
		override.UserModes = v
	}

	cfg := base
	_ = mergo.Merge(&cfg, Config(override), mergo.WithOverride)
	return cfg
}

// splitPrefix parses a PREFIX=(letters)sigils token value.
func splitPrefix(v string) (letters, sigils string, ok bool) {
	if len(v) < 2 || v[0] != '(' {
		return "", "", false
	}
	close := strings.IndexByte(v, ')')
	if close < 0 {
		return "", "", false
	}
	letters = v[1:close]
	sigils = v[close+1:]
	if len(letters) != len(sigils) {
		return "", "", false
	}
	return letters, sigils, true
}

// Target is the mutable state a MODE delta is applied against: a channel's
// own mode vector plus a lookup from member nick to that member's
// prefix-mode vector.
type Target struct {
	Chan    Vector
	Members map[string]Vector // keyed however the caller's casemap folds nicks
}

// RejectReason names why a single letter in a MODE delta was silently
// dropped, for the caller's error-line logging.
type RejectReason int

const (
	RejectUnknownLetter RejectReason = iota
	RejectMissingArg
	RejectNoSuchMember
	RejectModesCapExceeded
)

// Rejection records one dropped letter from an Apply call.
type Rejection struct {
	Letter byte
	Reason RejectReason
}

// Apply walks a MODE command's letters (e.g. "+abc-de") against target using
// cfg to classify each letter, consuming arguments from args in order. A
// letter is silently rejected (recorded in the returned Rejection slice,
// never applied) when: it is unknown to cfg; its required argument is
// missing; it is a PREFIX letter whose target is not a current member of
// target.Members; or the same letter has already been toggled cfg.ModesMax
// times within this call. fold normalizes a PREFIX target nick before it is
// looked up in target.Members.
func Apply(cfg Config, target *Target, letters string, args []string, fold func(string) string) []Rejection {
	var rejections []Rejection
	argi := 0
	nextArg := func() (string, bool) {
		if argi >= len(args) {
			return "", false
		}
		a := args[argi]
		argi++
		return a, true
	}

	sign := byte('+')
	toggles := map[byte]int{}

	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c == '+' || c == '-' {
			sign = c
			continue
		}

		class := cfg.ClassOf(c)
		if class == Unknown {
			rejections = append(rejections, Rejection{c, RejectUnknownLetter})
			continue
		}

		needsArg := false
		switch class {
		case ListMode, ParamMode, StatusMode:
			needsArg = true
		case SetParamMode:
			needsArg = sign == '+'
		case NoParamMode:
			needsArg = false
		}

		var arg string
		if needsArg {
			a, ok := nextArg()
			if !ok {
				rejections = append(rejections, Rejection{c, RejectMissingArg})
				continue
			}
			arg = a
		}

		if toggles[c] >= cfg.ModesMax {
			rejections = append(rejections, Rejection{c, RejectModesCapExceeded})
			continue
		}

		switch class {
		case StatusMode:
			key := fold(arg)
			cur, ok := target.Members[key]
			if !ok {
				rejections = append(rejections, Rejection{c, RejectNoSuchMember})
				continue
			}
			if sign == '+' {
				target.Members[key] = cur.Set(c)
			} else {
				target.Members[key] = cur.Clear(c)
			}
		default:
			if sign == '+' {
				target.Chan = target.Chan.Set(c)
			} else {
				target.Chan = target.Chan.Clear(c)
			}
		}

		toggles[c]++
	}

	return rejections
}

package mozcache

import (
	"fmt"
	"strings"
)

// Key is the decoded form of a v2 cache entry's key string: the raw ASCII
// key plus the fields parsed out of its tag sequence. Two keys are equal
// iff their raw strings match.
type Key struct {
	Raw                     string
	URL                     string
	OriginSuffix            string
	HasOriginSuffix         bool
	IDEnhance               string
	HasIDEnhance            bool
	IsAnonymous             bool
	SyncWithPrivateBrowsing bool
}

// ParseKey decodes the comma-delimited, escape-aware cache-key
// mini-language: ':' marks the trailing URL, 'O'/'~' carry escaped values,
// 'p'/'a' are boolean flags, and 'b'/'i' are rejected legacy tags.
func ParseKey(raw string) (Key, error) {
	key := Key{Raw: raw}
	s := raw

	for {
		if s == "" {
			break
		}

		tag := s[0]
		s = s[1:]

		if tag == ':' {
			key.URL = s
			return key, nil
		}

		switch tag {
		case 'O':
			value, rest, err := readTagValue(s)
			if err != nil {
				return Key{}, fmt.Errorf("%w: reading O value: %w", ErrMalformedKey, err)
			}
			key.OriginSuffix = value
			key.HasOriginSuffix = true
			s = rest
		case 'p':
			key.SyncWithPrivateBrowsing = true
		case 'a':
			key.IsAnonymous = true
		case '~':
			value, rest, err := readTagValue(s)
			if err != nil {
				return Key{}, fmt.Errorf("%w: reading ~ value: %w", ErrMalformedKey, err)
			}
			key.IDEnhance = value
			key.HasIDEnhance = true
			s = rest
		case 'b', 'i':
			return Key{}, fmt.Errorf("%w: legacy tag %q is not supported", ErrMalformedKey, tag)
		default:
			return Key{}, fmt.Errorf("%w: unexpected tag %q", ErrMalformedKey, tag)
		}

		if s == "" || s[0] != ',' {
			return Key{}, fmt.Errorf("%w: expected ',' after tag %q", ErrMalformedKey, tag)
		}
		s = s[1:]
	}

	return key, nil
}

// readTagValue reads an O/~ value: characters up to a comma not followed by
// a second comma. "," followed immediately by another "," is an escaped
// literal comma within the value.
func readTagValue(s string) (value string, rest string, err error) {
	var b strings.Builder
	for {
		if s == "" {
			return "", "", fmt.Errorf("unexpected end of key while reading a value")
		}
		c := s[0]
		s = s[1:]
		if c != ',' {
			b.WriteByte(c)
			continue
		}
		if s == "" {
			return "", "", fmt.Errorf("unexpected end of key while reading a value")
		}
		if s[0] == ',' {
			b.WriteByte(',')
			s = s[1:]
			continue
		}
		// s still begins with the comma that terminates the value.
		return b.String(), "," + s, nil
	}
}

// Equal reports whether two keys have the same raw representation.
func (k Key) Equal(other Key) bool { return k.Raw == other.Raw }

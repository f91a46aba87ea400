// Package extbuf extracts group-member nicknames from the chat_room
// ext_buffer blob. The blob is protobuf-shaped (length-delimited fields
// behind varint sizes) but carries no schema we control, so this is a
// deliberate heuristic scan: it looks for a field-1 member id followed
// by a field-2 nickname and resynchronizes by skipping whatever
// length-delimited region it last identified. It is not, and must not
// grow into, a general binary deserializer.
package extbuf

import (
	"regexp"
	"strings"
)

const (
	tagMemberID = 0x0A // field 1, length-delimited
	tagNickname = 0x12 // field 2, length-delimited

	maxIDLen   = 96
	maxNickLen = 128

	// varint values are capped at 53 bits, matching the upstream
	// encoder's safe-integer range.
	maxVarintShift = 53
)

var (
	memberIDRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.@-]*$`)
	punctOnlyRe = regexp.MustCompile(`^[,"'“”‘’，、]+$`)
	wxidHeadRe  = regexp.MustCompile(`(?i)^(wxid_[^_]+)`)
	dirSuffixRe = regexp.MustCompile(`^(.+)_([a-zA-Z0-9]{4})$`)
)

// ReadVarint reads a base-128 varint at offset: 7 payload bits per
// byte, little-endian groups, continuation via the high bit. ok is
// false when the buffer ends or the accumulated shift exceeds 53 bits
// before a terminating byte.
func ReadVarint(buf []byte, offset int) (value uint64, next int, ok bool) {
	shift := uint(0)
	pos := offset
	for pos < len(buf) && shift <= maxVarintShift {
		b := buf[pos]
		value += uint64(b&0x7F) << shift
		pos++
		if b&0x80 == 0 {
			return value, pos, true
		}
		shift += 7
	}
	return 0, 0, false
}

// NicknameMap maps member identifiers (and lowercase / suffix-stripped
// aliases) to cleaned group nicknames. Registration is first-write-wins.
type NicknameMap map[string]string

// set registers a nickname under key unless the key is already taken.
func (m NicknameMap) set(key, nickname string) {
	if key == "" {
		return
	}
	if _, exists := m[key]; !exists {
		m[key] = nickname
	}
}

// Resolve returns the first nickname found for any of the candidate
// identifier forms: exact key, then exact lowercase key, then a
// case-insensitive scan across all keys that is only trusted when it is
// unambiguous (exactly one distinct nickname).
func (m NicknameMap) Resolve(candidates ...string) string {
	ids := BuildIDCandidates(candidates)
	if len(ids) == 0 {
		return ""
	}
	for _, id := range ids {
		if nick := NormalizeNickname(m[id]); nick != "" {
			return nick
		}
		if nick := NormalizeNickname(m[strings.ToLower(id)]); nick != "" {
			return nick
		}
	}
	for _, id := range ids {
		lower := strings.ToLower(id)
		found := ""
		matched := 0
		for key, value := range m {
			if strings.ToLower(key) != lower {
				continue
			}
			nick := NormalizeNickname(value)
			if nick == "" {
				continue
			}
			found = nick
			matched++
			if matched > 1 {
				return ""
			}
		}
		if matched == 1 {
			return found
		}
	}
	return ""
}

// ParseNicknames scans an ext_buffer blob for member-id/nickname pairs.
// A non-empty candidates list restricts matching to those ids
// (case-insensitively). Malformed or truncated trailing bytes are
// ignored.
func ParseNicknames(buf []byte, candidates []string) NicknameMap {
	m := NicknameMap{}
	if len(buf) == 0 {
		return m
	}

	candidateSet := map[string]struct{}{}
	for _, id := range BuildIDCandidates(candidates) {
		candidateSet[strings.ToLower(id)] = struct{}{}
	}

	for i := 0; i < len(buf)-2; i++ {
		if buf[i] != tagMemberID {
			continue
		}

		idLen, idStart, ok := ReadVarint(buf, i+1)
		if !ok || idLen == 0 || idLen > maxIDLen {
			continue
		}
		idEnd := idStart + int(idLen)
		if idEnd > len(buf) {
			continue
		}

		memberID := strings.TrimSpace(string(buf[idStart:idEnd]))
		if !IsLikelyMemberID(memberID) {
			continue
		}

		if len(candidateSet) > 0 {
			if _, want := candidateSet[strings.ToLower(memberID)]; !want {
				i = idEnd - 1
				continue
			}
		}

		if idEnd >= len(buf) || buf[idEnd] != tagNickname {
			i = idEnd - 1
			continue
		}

		nickLen, nickStart, ok := ReadVarint(buf, idEnd+1)
		if !ok || nickLen == 0 || nickLen > maxNickLen {
			i = idEnd - 1
			continue
		}
		nickEnd := nickStart + int(nickLen)
		if nickEnd > len(buf) {
			i = idEnd - 1
			continue
		}

		nickname := NormalizeNickname(string(buf[nickStart:nickEnd]))
		if nickname == "" {
			i = nickEnd - 1
			continue
		}

		for _, alias := range BuildIDCandidates([]string{memberID}) {
			m.set(alias, nickname)
			m.set(strings.ToLower(alias), nickname)
		}

		i = nickEnd - 1
	}

	return m
}

// IsLikelyMemberID reports whether a byte run plausibly names a group
// member: leading letter, 4-80 chars, restricted alphabet, and not a
// room identifier.
func IsLikelyMemberID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if strings.Contains(id, "@chatroom") {
		return false
	}
	if len(id) < 4 || len(id) > 80 {
		return false
	}
	return memberIDRe.MatchString(id)
}

// NormalizeNickname strips control characters and rejects values that
// are empty or consist solely of punctuation/quote characters.
func NormalizeNickname(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, trimmed)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || punctOnlyRe.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// CleanAccountID normalizes an account identifier as it appears in
// directory names: "wxid_" ids keep only the wxid head, other ids drop
// a trailing 4-char alphanumeric suffix.
func CleanAccountID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return trimmed
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "wxid_") {
		if m := wxidHeadRe.FindStringSubmatch(trimmed); m != nil {
			return m[1]
		}
		return trimmed
	}
	if m := dirSuffixRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

// BuildIDCandidates expands raw identifiers into the distinct lookup
// forms used by the nickname map (raw plus suffix-stripped), preserving
// first-seen order.
func BuildIDCandidates(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(v string) {
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		add(v)
		if cleaned := CleanAccountID(v); cleaned != v {
			add(cleaned)
		}
	}
	return out
}

package irc

import "strings"

// applyISupport interprets the KEY[=VALUE] tokens of a single 005
// (RPL_ISUPPORT) line against sup, mutating it in place. It is safe to
// call repeatedly across a batch of 005 lines; the state tracker emits
// an "isupport" event after each 005 line it applies, carrying the state
// accumulated so far.
func applyISupport(sup *IrcSupported, tokens []string) {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		key, value, hasValue := strings.Cut(tok, "=")
		key = strings.ToUpper(key)

		switch key {
		case "CASEMAPPING":
			sup.CaseMapping = parseCaseMapping(value)
		case "CHANLIMIT":
			mergeIntMap(sup.ChanLimit, value)
		case "MAXLIST":
			mergeIntMap(sup.MaxList, value)
		case "TARGMAX":
			mergeIntMapUnlimited(sup.MaxTargets, value)
		case "IDCHAN":
			mergeIntMap(sup.ChanIDLength, value)
		case "CHANMODES":
			applyChanModes(sup, value)
		case "CHANTYPES":
			sup.ChanTypes = value
		case "CHANNELLEN":
			sup.ChanLength = atoiOr(value, sup.ChanLength)
		case "NICKLEN", "MAXNICKLEN":
			sup.NickLength = atoiOr(value, sup.NickLength)
		case "TOPICLEN":
			sup.TopicLength = atoiOr(value, sup.TopicLength)
		case "KICKLEN":
			sup.KickLength = atoiOr(value, sup.KickLength)
		case "MODES":
			sup.Modes = atoiOr(value, sup.Modes)
		case "PREFIX":
			applyPrefix(sup, value)
		case "STATUSMSG":
			// intentionally ignored: no component currently needs to send
			// status-prefixed channel messages (e.g. "@#chan").
		default:
			if !hasValue {
				appendUnique(&sup.Extra, key)
			} else {
				appendUnique(&sup.Extra, key+"="+value)
			}
		}
	}
}

// applyChanModes splits CHANMODES=A,B,C,D into the four classes, merging
// uniquely with any chars already present (such as the PREFIX modes
// folded into class B).
func applyChanModes(sup *IrcSupported, value string) {
	parts := strings.Split(value, ",")
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	sup.ChanModes.A = mergeUniqueChars(sup.ChanModes.A, parts[0])
	sup.ChanModes.B = mergeUniqueChars(sup.ChanModes.B, parts[1])
	sup.ChanModes.C = mergeUniqueChars(sup.ChanModes.C, parts[2])
	sup.ChanModes.D = mergeUniqueChars(sup.ChanModes.D, parts[3])
}

// applyPrefix parses PREFIX=(modes)prefixes into the modeForPrefix /
// prefixForMode bijection and folds the modes into class B uniquely.
func applyPrefix(sup *IrcSupported, value string) {
	if len(value) == 0 || value[0] != '(' {
		return
	}
	end := strings.IndexByte(value, ')')
	if end < 0 {
		return
	}
	modes := value[1:end]
	prefixes := value[end+1:]
	if len(modes) != len(prefixes) {
		return
	}

	sup.ModeForPrefix = make(map[string]string, len(modes))
	sup.PrefixForMode = make(map[string]string, len(modes))
	for i, m := range modes {
		p := string(prefixes[i])
		mc := string(m)
		sup.ModeForPrefix[p] = mc
		sup.PrefixForMode[mc] = p
	}
	sup.ChanModes.B = mergeUniqueChars(sup.ChanModes.B, modes)
}

// mergeUniqueChars returns existing with any runes from add it doesn't
// already contain appended, and removes duplicates already in existing.
func mergeUniqueChars(existing, add string) string {
	seen := make(map[rune]bool, len(existing)+len(add))
	var b strings.Builder
	for _, r := range existing + add {
		if seen[r] {
			continue
		}
		seen[r] = true
		b.WriteRune(r)
	}
	return b.String()
}

// mergeIntMap parses a comma-separated "pfx:n[,pfx:n...]" list into dst,
// overwriting any existing entries for the same prefix.
func mergeIntMap(dst map[string]int, value string) {
	for _, pair := range strings.Split(value, ",") {
		if pair == "" {
			continue
		}
		pfx, n, _ := strings.Cut(pair, ":")
		dst[pfx] = atoiOr(n, 0)
	}
}

// mergeIntMapUnlimited is like mergeIntMap but parses an absent or
// non-numeric value as "unlimited" (represented as 0), matching how
// TARGMAX commonly omits a limit for a given command prefix.
func mergeIntMapUnlimited(dst map[string]int, value string) {
	for _, pair := range strings.Split(value, ",") {
		if pair == "" {
			continue
		}
		pfx, n, _ := strings.Cut(pair, ":")
		if n == "" {
			dst[pfx] = 0
			continue
		}
		dst[pfx] = atoiOr(n, 0)
	}
}

func atoiOr(s string, fallback int) int {
	n := 0
	if s == "" {
		return fallback
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func appendUnique(list *[]string, v string) {
	for _, existing := range *list {
		if existing == v {
			return
		}
	}
	*list = append(*list, v)
}

// isupportTokens splits the trailing-less middle parameters of a 005
// line into its KEY[=VALUE] tokens: everything except the first
// parameter (the nick) and the last (the trailing ":are supported..." text).
func isupportTokens(m *Message) []string {
	if len(m.Params) < 3 {
		return nil
	}
	return m.Params[1 : len(m.Params)-1]
}

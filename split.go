package irc

import "github.com/rivo/uniseg"

// Split breaks text into chunks no longer than budget UTF-8 bytes,
// iterating by extended grapheme cluster so a multi-rune emoji sequence
// or combining mark is never divided across chunks. When a chunk would
// otherwise end mid-word, the break is placed at the last space within
// the chunk instead (the space itself is dropped, not carried onto
// either side); when no space falls within the budget, the chunk is cut
// hard at the grapheme boundary. Resplitting an already-split slice at
// the same budget reproduces it unchanged. An empty input returns nil.
func Split(text string, budget int) []string {
	if text == "" {
		return nil
	}
	if budget <= 0 {
		budget = 1
	}

	var out []string
	remaining := text

	for len(remaining) > 0 {
		var (
			accByte       int
			cut           int
			lastSpaceCut  = -1
			lastSpaceNext = -1
			state         = -1
			rest          = remaining
		)

		for len(rest) > 0 {
			cluster, next, _, newState := uniseg.FirstGraphemeClusterInString(rest, state)
			if accByte+len(cluster) > budget {
				if cut == 0 {
					// a single grapheme cluster already exceeds the
					// budget; take it anyway so Split always makes
					// progress instead of looping forever.
					cut = len(cluster)
					rest = next
				}
				break
			}
			accByte += len(cluster)
			cut += len(cluster)
			if cluster == " " {
				lastSpaceCut = cut - 1
				lastSpaceNext = cut
			}
			rest = next
			state = newState
		}

		switch {
		case len(rest) == 0:
			out = append(out, remaining)
			remaining = ""
		case lastSpaceCut >= 0:
			out = append(out, remaining[:lastSpaceCut])
			remaining = remaining[lastSpaceNext:]
		default:
			out = append(out, remaining[:cut])
			remaining = remaining[cut:]
		}
	}
	return out
}

// SplitLines splits text on bare \r, \n, or \r\n, as the Send Pipeline's
// say/notice/action convenience operations do before passing each
// resulting line through Split.
func SplitLines(text string) []string {
	var lines []string
	start, i := 0, 0
	for i < len(text) {
		switch text[i] {
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			i++
			start = i
		case '\n':
			lines = append(lines, text[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	lines = append(lines, text[start:])
	return lines
}

// splitBudget computes the effective per-line budget for outgoing text
// to target: the smaller of messageSplit and the remaining room in a
// 512-byte line once the server will have prefixed it with our own
// nick!user@host and the PRIVMSG/NOTICE framing around target.
func splitBudget(messageSplit int, currentNick, hostMask, target string) int {
	b := 497 - len(currentNick) - len(hostMask) - len(target)
	if messageSplit > 0 && messageSplit < b {
		b = messageSplit
	}
	if b < 1 {
		b = 1
	}
	return b
}

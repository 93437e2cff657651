package newsrss

import "strings"

var positiveEN = wordSet(
	"beats", "beat", "surge", "soars", "soar", "rally", "rallies", "bullish",
	"upgrade", "upgrades", "record", "strong", "growth", "profit", "profits",
	"buy", "outperform", "wins", "win",
)

var negativeEN = wordSet(
	"miss", "misses", "plunge", "plunges", "falls", "fall", "drop", "drops",
	"bearish", "downgrade", "downgrades", "weak", "slump", "loss", "losses",
	"sell", "lawsuit", "probe", "recall", "warning",
)

var positiveKO = wordSet(
	"상승", "급등", "강세", "호재", "기대", "성장", "최고", "개선", "흑자",
	"상향", "돌파", "확대", "선방", "반등", "매수",
)

var negativeKO = wordSet(
	"하락", "급락", "약세", "악재", "우려", "부진", "최저", "감소", "적자",
	"하향", "경고", "리콜", "소송", "충격", "불확실", "매도",
)

func wordSet(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// EstimateTone scores a headline on a GDELT-like tone scale of roughly
// [-10, 10] using keyword counting. Nil means no usable text; 0 means
// neutral. This is a heuristic, not a model.
func EstimateTone(title, lang string) *float64 {
	korean := strings.HasPrefix(strings.ToLower(lang), "ko")
	pos, neg := positiveEN, negativeEN
	if korean {
		pos, neg = positiveKO, negativeKO
	}

	words := tokenize(title, korean)
	if len(words) == 0 {
		return nil
	}

	var p, n int
	for _, w := range words {
		if pos[w] {
			p++
		}
		if neg[w] {
			n++
		}
	}

	score := float64(p-n) * 2.0
	if score > 10 {
		score = 10
	}
	if score < -10 {
		score = -10
	}
	return &score
}

// tokenize lowercases (for ASCII) and splits on anything that is not a
// letter or digit. Hangul is kept as-is.
func tokenize(title string, keepHangul bool) []string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case keepHangul && r >= 0xAC00 && r <= 0xD7A3:
			return r
		default:
			return ' '
		}
	}, title)
	return strings.Fields(mapped)
}

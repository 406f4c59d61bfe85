package cost

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type substitution struct {
	pattern *regexp.Regexp
	short   string
}

// phrases compiles long/short pairs. A phrase only matches between non-letters,
// so it never fires inside a longer word in any script.
func phrases(pairs ...string) []substitution {
	subs := make([]substitution, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		subs = append(subs, substitution{
			pattern: regexp.MustCompile(`(?i)(?:^|[^\p{L}])(` + regexp.QuoteMeta(pairs[i]) + `)(?:$|[^\p{L}])`),
			short:   pairs[i+1],
		})
	}
	return subs
}

// replace substitutes every bounded occurrence of the phrase. Scanning resumes
// at the end of the phrase itself so adjacent occurrences can share a boundary.
func (sub substitution) replace(text string) string {
	var b strings.Builder
	pos := 0
	for pos <= len(text) {
		loc := sub.pattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[2], pos+loc[3]
		// ^ must mean the start of the text, not the start of the remainder
		if start == pos && pos > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:pos])
			if unicode.IsLetter(r) {
				b.WriteString(text[pos:end])
				pos = end
				continue
			}
		}
		b.WriteString(text[pos:start])
		b.WriteString(matchCase(text[start:end], sub.short))
		pos = end
	}
	if pos < len(text) {
		b.WriteString(text[pos:])
	}
	return b.String()
}

// matchCase keeps a leading capital of the replaced phrase
func matchCase(matched, short string) string {
	m, _ := utf8.DecodeRuneInString(matched)
	r, size := utf8.DecodeRuneInString(short)
	if unicode.IsUpper(m) && unicode.IsLower(r) {
		return string(unicode.ToUpper(r)) + short[size:]
	}
	return short
}

// Long-to-short phrase tables applied before synthesis. Longer phrases come
// first so they win over phrases they contain.
var phraseTables = map[string][]substitution{
	"en": phrases(
		"I would be more than happy to help you with that", "Sure",
		"I would be happy to help you with that", "Sure",
		"Thank you very much for your patience", "Thanks for waiting",
		"Please hold on for a moment while I check", "One moment",
		"Is there anything else I can help you with", "Anything else",
		"I apologize for the inconvenience", "Sorry about that",
		"at this point in time", "now",
		"in order to", "to",
		"as soon as possible", "soon",
	),
	"el": phrases(
		"Θα χαρώ πολύ να σας βοηθήσω με αυτό", "Βεβαίως",
		"Σας ευχαριστώ πολύ για την υπομονή σας", "Ευχαριστώ",
		"Παρακαλώ περιμένετε μια στιγμή", "Μια στιγμή",
		"Υπάρχει κάτι άλλο που μπορώ να κάνω για εσάς", "Κάτι άλλο",
		"Ζητώ συγγνώμη για την ταλαιπωρία", "Συγγνώμη",
	),
	"ru": phrases(
		"Я буду рад помочь вам с этим", "Конечно",
		"Большое спасибо за ваше терпение", "Спасибо",
		"Пожалуйста, подождите минутку", "Минутку",
		"Могу ли я ещё чем-нибудь помочь", "Что-то ещё",
		"Приношу извинения за неудобства", "Извините",
	),
}

var (
	spaceRun         = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?;:])`)
	punctRun         = regexp.MustCompile(`([,.!?;:])[,.!?;:]+`)
)

// OptimizeResponse shortens text before speech synthesis and records the bytes saved
func (s *Service) OptimizeResponse(text, language string) string {
	optimized := Optimize(text, language)
	if saved := len(text) - len(optimized); saved > 0 {
		s.optimizations.Add(1)
		s.bytesSaved.Add(int64(saved))
	}
	return optimized
}

// Optimize applies the phrase table of a language, falling back to English,
// then normalizes whitespace and punctuation
func Optimize(text, language string) string {
	table, ok := phraseTables[language]
	if !ok {
		table = phraseTables["en"]
	}

	out := text
	for _, sub := range table {
		out = sub.replace(out)
	}

	out = spaceRun.ReplaceAllString(out, " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = punctRun.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

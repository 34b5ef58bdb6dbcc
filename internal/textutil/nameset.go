package textutil

import "strings"

// NameSet folds near-duplicate entity names. A name counts as a duplicate
// when its lowercase form was already added, or when every one of its tokens
// appears in a single previously added name ("Aren" after "King Aren").
type NameSet struct {
	exact  map[string]bool
	tokens []map[string]bool
}

// Add records the name and reports whether it was new.
func (s *NameSet) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if s.exact == nil {
		s.exact = make(map[string]bool)
	}
	key := strings.ToLower(name)
	if s.exact[key] {
		return false
	}
	s.exact[key] = true

	toks := Tokenize(name)
	for _, prev := range s.tokens {
		if len(toks) > 0 && containsAll(prev, toks) {
			return false
		}
	}
	if len(toks) > 0 {
		set := make(map[string]bool, len(toks))
		for _, t := range toks {
			set[t] = true
		}
		s.tokens = append(s.tokens, set)
	}
	return true
}

func containsAll(set map[string]bool, toks []string) bool {
	for _, t := range toks {
		if !set[t] {
			return false
		}
	}
	return true
}

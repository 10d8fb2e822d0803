package textnorm

// DefaultCustomStopWords are measurement units and catalogue noise observed in product titles.
var DefaultCustomStopWords = []string{"m", "dm", "cm", "mm", "le", "n", "n°", "rc"}

var frenchStopWords = []string{
	"a", "à", "afin", "ai", "aie", "aient", "aies", "ait", "alors", "as", "au", "aucun", "aucune", "aujourd",
	"auquel", "aura", "aurai", "auraient", "aurais", "aurait", "auras", "aurez", "auriez", "aurions", "aurons",
	"auront", "aussi", "autre", "autres", "aux", "auxquelles", "auxquels", "avaient", "avais", "avait", "avant",
	"avec", "avez", "aviez", "avions", "avoir", "avons", "ayant", "ayez", "ayons", "bon", "c", "ça", "car", "ce",
	"ceci", "cela", "celle", "celles", "celui", "ces", "cet", "cette", "ceux", "chaque", "ci", "comme", "comment",
	"d", "dans", "de", "dedans", "dehors", "depuis", "des", "desquelles", "desquels", "dessous", "dessus", "devrait",
	"doit", "donc", "dont", "du", "duquel", "elle", "elles", "en", "encore", "entre", "es", "est", "et", "étaient",
	"étais", "était", "étant", "été", "êtes", "étiez", "étions", "être", "eu", "eue", "eues", "eûmes", "eurent",
	"eus", "eusse", "eussent", "eusses", "eussiez", "eussions", "eut", "eût", "eûtes", "eux", "fois", "font", "fûmes",
	"furent", "fus", "fusse", "fussent", "fusses", "fussiez", "fussions", "fut", "fût", "fûtes", "hors", "ici",
	"il", "ils", "j", "je", "jusqu", "jusque", "l", "la", "là", "laquelle", "le", "lequel", "les", "lesquelles",
	"lesquels", "leur", "leurs", "lui", "m", "ma", "mais", "me", "même", "mêmes", "mes", "moi", "moins", "mon",
	"n", "ne", "ni", "nos", "notre", "nous", "on", "ont", "ou", "où", "par", "parce", "pas", "peu", "peut", "plupart",
	"pour", "pourquoi", "qu", "quand", "que", "quel", "quelle", "quelles", "quels", "qui", "quoi", "s", "sa",
	"sans", "se", "sera", "serai", "seraient", "serais", "serait", "seras", "serez", "seriez", "serions", "serons",
	"seront", "ses", "si", "sien", "sienne", "siennes", "siens", "soi", "soient", "sois", "soit", "sommes", "son",
	"sont", "sous", "soyez", "soyons", "suis", "sur", "t", "ta", "tandis", "te", "tes", "toi", "ton", "tous", "tout",
	"toute", "toutes", "très", "tu", "un", "une", "unes", "uns", "vos", "votre", "vous", "vu", "y",
}

var englishStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and", "any", "are", "aren", "as", "at",
	"be", "because", "been", "before", "being", "below", "between", "both", "but", "by", "can", "cannot", "could",
	"couldn", "did", "didn", "do", "does", "doesn", "doing", "don", "down", "during", "each", "few", "for", "from",
	"further", "had", "hadn", "has", "hasn", "have", "haven", "having", "he", "her", "here", "hers", "herself",
	"him", "himself", "his", "how", "i", "if", "in", "into", "is", "isn", "it", "its", "itself", "just", "ll", "me",
	"more", "most", "mustn", "my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once", "only", "or",
	"other", "ought", "our", "ours", "ourselves", "out", "over", "own", "re", "same", "shan", "she", "should",
	"shouldn", "so", "some", "such", "than", "that", "the", "their", "theirs", "them", "themselves", "then",
	"there", "these", "they", "this", "those", "through", "to", "too", "under", "until", "up", "ve", "very", "was",
	"wasn", "we", "were", "weren", "what", "when", "where", "which", "while", "who", "whom", "why", "will", "with",
	"won", "would", "wouldn", "you", "your", "yours", "yourself", "yourselves",
}

type stopSet map[string]struct{}

func newStopSet(base []string, extra ...[]string) stopSet {
	set := make(stopSet, len(base))
	for _, w := range base {
		set[normalizeWord(w)] = struct{}{}
	}
	for _, list := range extra {
		for _, w := range list {
			if w = normalizeWord(w); w != "" {
				set[w] = struct{}{}
			}
		}
	}
	return set
}

func (s stopSet) filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := s[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

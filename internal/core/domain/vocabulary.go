package domain

type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type WordCharacterCount struct {
	Word    string `json:"word"`
	NbChars int    `json:"nbChars"`
}

type TextVariableStats struct {
	VariableName            string               `json:"variableName"`
	NbWordsBeforeProcessing int64                `json:"nbWordsBeforeProcessing"`
	NbWords                 int64                `json:"nbWords"`
	WordsCount              []WordCount          `json:"wordsCount"`
	LongestWords            []WordCharacterCount `json:"longestWords"`
	Batches                 int                  `json:"batches"`
}

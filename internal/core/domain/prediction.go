package domain

const MaxDesignationLength = 256

type CategoryProbability struct {
	CategoryID  int     `json:"categoryId"`
	Probability float64 `json:"probability"`
}

type PredictionAnswer struct {
	Designation   string                `json:"designation"`
	Description   string                `json:"description"`
	ModelID       string                `json:"modelId"`
	Probabilities []CategoryProbability `json:"probabilities"`
}

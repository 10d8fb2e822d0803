package domain

import "fmt"

// Category is immutable reference data with sparse, externally assigned ids.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TextField selects which product column a text scan reads.
type TextField string

const (
	FieldDesignation TextField = "designation"
	FieldDescription TextField = "description"
)

func ParseTextField(raw string) (TextField, error) {
	switch TextField(raw) {
	case FieldDesignation, FieldDescription:
		return TextField(raw), nil
	default:
		return "", WrapError(ErrInvalidInput, "parse text field",
			fmt.Errorf("type not supported, must be %q or %q", FieldDesignation, FieldDescription))
	}
}

type TextRow struct {
	ID   int64
	Text string
}

type LabeledText struct {
	ID          int64
	Designation string
	Description string
	CategoryID  int
}

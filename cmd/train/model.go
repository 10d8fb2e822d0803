package main

import (
	"strings"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

func newStartedModel(name, description string) domain.NewModelInput {
	status := domain.ModelStatusStarted
	return domain.NewModelInput{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Status:      &status,
	}
}

package translate

import (
	"fmt"
	"strings"
)

const TextPlaceholder = "{{TEXT}}"

// PromptTemplate embeds user text into the configured prompt
type PromptTemplate struct {
	template string
}

// NewPromptTemplate validates and wraps a template
func NewPromptTemplate(template string) (*PromptTemplate, error) {
	if !strings.Contains(template, TextPlaceholder) {
		return nil, fmt.Errorf("prompt template must contain %s placeholder", TextPlaceholder)
	}
	return &PromptTemplate{template: template}, nil
}

// Render replaces every placeholder with the text
func (p *PromptTemplate) Render(text string) string {
	return strings.ReplaceAll(p.template, TextPlaceholder, text)
}

package search

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/poiesic/docrag/core"
)

// DefaultNoResultAnswer is returned when no passage matches a query.
const DefaultNoResultAnswer = "I apologize, but I couldn't find any relevant information in our course database for your query. Please try rephrasing your question or ask about our available programs."

// DefaultPromptTemplate asks for a structured course-advisor answer.
// Templates see .Query and .Context.
const DefaultPromptTemplate = `You are a professional course advisor. Based on the following context, provide a comprehensive and well-structured response to the query: '{{.Query}}'

Context:
{{.Context}}

Please format your response professionally with the following structure:

## Course Overview
[Brief introduction and key highlights]

## Course Metadata
- **Course Name:** [Name]
- **Duration:** [Duration]
- **Course Fee:** [Fee]
- **Instructor:** [Name with qualifications and experience]

## Course Details
### Curriculum & Learning Objectives
[Detailed description of what students will learn]

### Course Structure & Methodology
[Information about hands-on practice, assessments, projects, etc.]

### Key Features
[Highlight unique aspects and benefits]

Make the response professional, informative, and well-organized. Use proper formatting with headers, bullet points, and clear sections. If multiple courses are relevant, structure each course separately.`

// promptData is the value a prompt template is executed with.
type promptData struct {
	Query   string
	Context string
}

// ParsePromptTemplate parses a prompt template. Unknown fields are errors.
func ParsePromptTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: prompt template: %w", core.ErrInvalidConfig, err)
	}
	// Catch references to fields promptData does not have.
	if err := tmpl.Execute(&strings.Builder{}, promptData{}); err != nil {
		return nil, fmt.Errorf("%w: prompt template: %w", core.ErrInvalidConfig, err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, query, context string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, promptData{Query: query, Context: context}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

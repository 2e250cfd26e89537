package email

import (
	"bytes"
	_ "embed"
)

//go:embed seeds/default_templates.yaml
var defaultTemplateSeeds []byte

// DefaultTemplateSeeds returns the templates shipped with the application.
func DefaultTemplateSeeds() ([]TemplateSeed, error) {
	return LoadTemplateSeeds(bytes.NewReader(defaultTemplateSeeds))
}

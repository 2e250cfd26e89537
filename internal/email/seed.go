package email

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/apperr"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// TemplateSeed is one entry of a template seed file.
type TemplateSeed struct {
	Name     string  `yaml:"name"`
	Subject  string  `yaml:"subject"`
	BodyText string  `yaml:"body_text"`
	BodyHTML *string `yaml:"body_html,omitempty"`
	Category string  `yaml:"category"`
}

type seedFile struct {
	Templates []TemplateSeed `yaml:"templates"`
}

// TemplateStore is the part of the template repository seeding needs.
type TemplateStore interface {
	FindByName(ctx context.Context, workspaceID uuid.UUID, name string) (domain.EmailTemplate, error)
	Create(ctx context.Context, tpl domain.EmailTemplate) error
}

// LoadTemplateSeeds parses a YAML seed document.
func LoadTemplateSeeds(r io.Reader) ([]TemplateSeed, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode template seeds: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Templates))
	for i, seed := range file.Templates {
		if strings.TrimSpace(seed.Name) == "" {
			return nil, apperr.Validationf("template %d: name is required", i)
		}
		if strings.TrimSpace(seed.Subject) == "" || strings.TrimSpace(seed.BodyText) == "" {
			return nil, apperr.Validationf("template %q: subject and body_text are required", seed.Name)
		}
		if _, dup := seen[seed.Name]; dup {
			return nil, apperr.Validationf("template %q is defined twice", seed.Name)
		}
		seen[seed.Name] = struct{}{}
	}
	return file.Templates, nil
}

// SeedTemplates creates every seed whose name is not yet used in the workspace
// and returns the names that were created.
func SeedTemplates(ctx context.Context, store TemplateStore, workspaceID uuid.UUID, seeds []TemplateSeed, now time.Time) ([]string, error) {
	created := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		_, err := store.FindByName(ctx, workspaceID, seed.Name)
		if err == nil {
			continue
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return created, err
		}

		category := seed.Category
		if category == "" {
			category = "general"
		}
		tpl := domain.EmailTemplate{
			ID:          uuid.New(),
			CreatedAt:   now,
			UpdatedAt:   now,
			Name:        seed.Name,
			Subject:     seed.Subject,
			BodyText:    seed.BodyText,
			BodyHTML:    seed.BodyHTML,
			Category:    category,
			WorkspaceID: workspaceID,
		}
		if err := store.Create(ctx, tpl); err != nil {
			return created, err
		}
		created = append(created, seed.Name)
	}
	return created, nil
}

package selfcode

import "context"

// Spec describes what a generated program should do — the Generate stage's
// input.
type Spec struct {
	Description string
	Context     string
	Language    string
}

// CodeGenerator is the narrow interface the Generate stage depends on. The
// core pipeline never imports a concrete LLM SDK directly — only this
// interface, treating the LLM provider as a swappable external collaborator.
type CodeGenerator interface {
	Generate(ctx context.Context, spec Spec) (code string, confidence float64, err error)
}

// TemplateGenerator is a deterministic, dependency-free CodeGenerator used
// as the default (and in tests): it produces a minimal stub function rather
// than calling out to any LLM.
type TemplateGenerator struct{}

// Generate returns a deterministic stub program for spec.
func (TemplateGenerator) Generate(_ context.Context, spec Spec) (string, float64, error) {
	lang := spec.Language
	if lang == "" {
		lang = "python"
	}
	code := "# " + spec.Description + "\n" +
		"def generated():\n" +
		"    \"\"\"Auto-generated stub.\"\"\"\n" +
		"    return None\n"
	return code, 0.5, nil
}

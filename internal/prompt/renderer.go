package prompt

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/cbroglie/mustache"
)

// Renderer turns a resume and job description into the system prompt via a
// mustache template with {{resume}}, {{jd}} and {{email}} placeholders. The
// template body is cached after the first successful load. Rendering never
// fails: any template problem falls back to a fixed prompt skeleton that
// still embeds resume and jd verbatim.
type Renderer struct {
	templatePath string
	email        string

	mu       sync.Mutex
	template string
	loaded   bool
}

func NewRenderer(templatePath, email string) *Renderer {
	return &Renderer{
		templatePath: templatePath,
		email:        email,
	}
}

// ValidateTemplate checks that the template file exists. Run once at
// process start; a missing template is a startup failure, not a turn failure.
func ValidateTemplate(templatePath string) bool {
	info, err := os.Stat(templatePath)
	if err != nil || info.IsDir() {
		log.Printf("Template file not found: %s", templatePath)
		return false
	}
	return true
}

// Render produces the system prompt for the given documents. A turn must
// never fail because the template is broken, so all errors collapse into
// the fallback prompt.
func (r *Renderer) Render(resume, jd string) string {
	template, err := r.loadTemplate()
	if err != nil {
		log.Printf("Error loading template: %v", err)
		return fallbackPrompt(resume, jd)
	}
	if strings.TrimSpace(template) == "" {
		log.Printf("Template %s is empty, using fallback prompt", r.templatePath)
		return fallbackPrompt(resume, jd)
	}

	rendered, err := mustache.Render(template, map[string]string{
		"resume": resume,
		"jd":     jd,
		"email":  r.email,
	})
	if err != nil {
		log.Printf("Error rendering template: %v", err)
		return fallbackPrompt(resume, jd)
	}

	return rendered
}

func (r *Renderer) loadTemplate() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.template, nil
	}

	body, err := os.ReadFile(r.templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", r.templatePath, err)
	}

	r.template = string(body)
	r.loaded = true
	return r.template, nil
}

func fallbackPrompt(resume, jd string) string {
	return fmt.Sprintf(`You are a helpful career advisor assistant reviewing a resume against a job description.

RESUME:
%s

JOB DESCRIPTION:
%s

Please provide thoughtful, specific feedback to help the hiring manager evaluate fit for this position.`, resume, jd)
}

package pipeline

import (
	"maps"
	"regexp"
)

// Context variable names seeded by the worker and written by core steps.
const (
	KeyDocumentID    = "document_id"
	KeyFilename      = "filename"
	KeyDocumentClass = "document_class"
	KeyExtractedText = "extracted_text"
	KeyOCRConfidence = "ocr_confidence"
	KeyOCREngine     = "ocr_engine"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Context is the mutable variable store a job's steps read and write.
// Variables are set incrementally as steps execute; once written, a variable
// may be read or overwritten by later steps but is never removed until job
// teardown.
type Context struct {
	vars map[string]string
}

// NewContext creates a Context seeded with the given variables.
func NewContext(seed map[string]string) *Context {
	vars := make(map[string]string, len(seed))
	maps.Copy(vars, seed)
	return &Context{vars: vars}
}

// Set writes a variable.
func (c *Context) Set(name, value string) {
	c.vars[name] = value
}

// Get returns a variable's value and whether it is present.
func (c *Context) Get(name string) (string, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Has reports whether a variable is present.
func (c *Context) Has(name string) bool {
	_, ok := c.vars[name]
	return ok
}

// Render substitutes {{name}} placeholders in template with context values.
// Placeholders naming absent variables are left intact.
func (c *Context) Render(template string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := c.vars[name]; ok {
			return v
		}
		return match
	})
}

// Values returns a copy of the current variables.
func (c *Context) Values() map[string]string {
	out := make(map[string]string, len(c.vars))
	maps.Copy(out, c.vars)
	return out
}

// Package template renders action and integration templates against tool
// inputs, with secret indirection for credential values.
//
// Two-stage resolution: a value that is exactly one {{UPPER_SNAKE}} token
// is treated as a secret reference and resolved against the secret store
// (falling back to an identically-named environment variable); anything
// else goes through the generic mustache renderer.
package template

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// secretToken matches a template that is exactly one secret reference,
// with no surrounding text.
var secretToken = regexp.MustCompile(`^\{\{([A-Z][A-Z0-9_]*)\}\}$`)

// interpolation matches mustache tags: triple-brace raw tags first so
// they pass through untouched, then plain double-brace tags.
var interpolation = regexp.MustCompile(`\{\{\{[^{}]*\}\}\}|\{\{([^{}]+)\}\}`)

// rawTags rewrites {{name}} interpolations to the raw form {{&name}}.
// Rendered values go into URLs, query params, headers, and request
// bodies, not HTML, so the default mustache escaping would corrupt any
// input containing & < > ' or ".
func rawTags(tmpl string) string {
	return interpolation.ReplaceAllStringFunc(tmpl, func(tag string) string {
		if strings.HasPrefix(tag, "{{{") {
			return tag
		}
		inner := tag[2 : len(tag)-2]
		switch inner[0] {
		case '&', '#', '/', '^', '!', '>':
			// Already raw, or a section/comment/partial tag.
			return tag
		}
		return "{{&" + inner + "}}"
	})
}

// SecretSource looks up a stored secret by its unique name.
type SecretSource interface {
	GetSecretByName(ctx context.Context, name string) (*models.Secret, error)
}

// Decrypter recovers a secret's plaintext from its stored ciphertext.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Resolver renders templates and resolves secret references.
type Resolver struct {
	secrets SecretSource
	cipher  Decrypter
}

// NewResolver creates a template resolver backed by the given secret store.
func NewResolver(secrets SecretSource, cipher Decrypter) *Resolver {
	return &Resolver{secrets: secrets, cipher: cipher}
}

// Render substitutes mustache placeholders in tmpl with values from
// inputs. Interpolations are raw: the output is wire data, never HTML.
func (r *Resolver) Render(tmpl string, inputs map[string]any) (string, error) {
	out, err := mustache.Render(rawTags(tmpl), inputs)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// ResolveValue resolves a single template value. An exact {{UPPER_SNAKE}}
// token is looked up as a secret (store first, then environment); secrets
// are decrypted fresh on every call, never cached. Any other template
// delegates to Render.
func (r *Resolver) ResolveValue(ctx context.Context, tmpl string, inputs map[string]any) (string, error) {
	m := secretToken.FindStringSubmatch(tmpl)
	if m == nil {
		return r.Render(tmpl, inputs)
	}
	name := m[1]

	if r.secrets != nil {
		if secret, err := r.secrets.GetSecretByName(ctx, name); err == nil {
			plain, err := r.cipher.Decrypt(secret.Value)
			if err != nil {
				return "", fmt.Errorf("decrypt secret %s: %w", name, err)
			}
			return plain, nil
		}
	}

	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}

	return "", fmt.Errorf("secret not found: %s", name)
}

// Package names implements the identifier grammar and selector syntax used
// to address projects and tasks: validation of `[A-Za-z_][A-Za-z0-9_-]*`
// identifiers via a shared go-playground/validator instance, and parsing of
// the bit-exact selector grammar `[':' project-path] [':' name] ['?']`.
package names

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const identifierTag = "krakenIdentifier"

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New(validator.WithRequiredStructEnabled())
		_ = validatorInst.RegisterValidation(identifierTag, validateIdentifierField)
	})
	return validatorInst
}

func validateIdentifierField(fl validator.FieldLevel) bool {
	return IsValidIdentifier(fl.Field().String())
}

// IsValidIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_-]*.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9', r == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ValidateIdentifier validates a single identifier via the shared validator
// instance, matching the teacher's struct-tag validation idiom even though
// the grammar here is checked by a registered custom rule rather than a
// struct field.
func ValidateIdentifier(name string) error {
	type holder struct {
		Name string `validate:"required,krakenIdentifier"`
	}
	if err := validatorInstance().Struct(holder{Name: name}); err != nil {
		return fmt.Errorf("invalid identifier %q: must match [A-Za-z_][A-Za-z0-9_-]*", name)
	}
	return nil
}

// Selector is a parsed task selector: `[':' project-path] [':' name] ['?']`.
// An absolute selector (a leading ':') is resolved relative to the root
// project; otherwise it is relative to the calling project. A relative
// selector with an empty ProjectPath and a non-empty Name matches every task
// with that name in the subtree rooted at the resolving project; an absolute
// one (":name") matches only the root project's own task of that name.
type Selector struct {
	Absolute    bool
	ProjectPath []string
	Name        string
	Optional    bool
}

// String renders the selector back to its canonical textual form.
func (s Selector) String() string {
	var b strings.Builder
	if s.Absolute {
		b.WriteByte(':')
	}
	b.WriteString(strings.Join(s.ProjectPath, ":"))
	if len(s.ProjectPath) > 0 && s.Name != "" {
		b.WriteByte(':')
	}
	b.WriteString(s.Name)
	if s.Optional {
		b.WriteByte('?')
	}
	return b.String()
}

// ParseSelector parses raw per the selector grammar. `::` collapses to a
// single separator; a lone ":" denotes the root project with no task name.
func ParseSelector(raw string) (Selector, error) {
	if raw == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}

	sel := Selector{}
	text := raw
	if strings.HasSuffix(text, "?") {
		sel.Optional = true
		text = text[:len(text)-1]
	}

	if strings.HasPrefix(text, ":") {
		sel.Absolute = true
		text = text[1:]
	}

	// collapse any run of consecutive ':' (covers "::" collapsing)
	var collapsed strings.Builder
	prevColon := false
	for _, r := range text {
		if r == ':' {
			if prevColon {
				continue
			}
			prevColon = true
		} else {
			prevColon = false
		}
		collapsed.WriteRune(r)
	}
	text = collapsed.String()

	if text == "" {
		return sel, nil
	}

	parts := strings.Split(text, ":")
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !IsValidIdentifier(p) {
			return Selector{}, fmt.Errorf("invalid selector %q: segment %q is not a valid identifier", raw, p)
		}
	}

	sel.Name = parts[len(parts)-1]
	sel.ProjectPath = parts[:len(parts)-1]
	return sel, nil
}

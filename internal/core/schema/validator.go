package schema

import (
	"fmt"
	"math"

	"scorehub.io/cli/internal/core/domain"
)

// Validate checks a candidate document against the schema. It collects every
// violation rather than stopping at the first, and returns them wrapped in a
// domain.ValidationErrors. Unknown keys are permitted: values contributed by
// since-disabled plugins may remain in the document and are simply ignored.
func Validate(doc domain.ConfigDocument, s *Schema) error {
	var errs []domain.ValidationError

	for _, key := range s.Keys() {
		prop, _ := s.Property(key)
		value, present := doc.Get(key)

		if !present {
			if prop.Required {
				errs = append(errs, domain.ValidationError{Field: key, Reason: "required key is missing"})
			}
			continue
		}

		if reason := checkType(value, prop); reason != "" {
			errs = append(errs, domain.ValidationError{Field: key, Reason: reason})
			continue
		}
		if reason := checkConstraints(value, prop); reason != "" {
			errs = append(errs, domain.ValidationError{Field: key, Reason: reason})
		}
	}

	if len(errs) > 0 {
		return &domain.ValidationErrors{Errors: errs}
	}
	return nil
}

func checkType(value any, prop Property) string {
	switch prop.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("expected string, got %T", value)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %T", value)
		}
	case TypeNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("expected number, got %T", value)
		}
	case TypeInteger:
		f, ok := value.(float64)
		if !ok {
			return fmt.Sprintf("expected integer, got %T", value)
		}
		if f != math.Trunc(f) {
			return fmt.Sprintf("expected integer, got %v", f)
		}
	case TypeArray:
		if _, ok := value.([]any); !ok {
			return fmt.Sprintf("expected array, got %T", value)
		}
	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("expected object, got %T", value)
		}
	}
	return ""
}

func checkConstraints(value any, prop Property) string {
	if len(prop.Enum) > 0 {
		s, ok := value.(string)
		if ok {
			for _, allowed := range prop.Enum {
				if s == allowed {
					return ""
				}
			}
			return fmt.Sprintf("value %q not in allowed set %v", s, prop.Enum)
		}
	}
	if f, ok := value.(float64); ok {
		if prop.Minimum != nil && f < *prop.Minimum {
			return fmt.Sprintf("value %v below minimum %v", f, *prop.Minimum)
		}
		if prop.Maximum != nil && f > *prop.Maximum {
			return fmt.Sprintf("value %v above maximum %v", f, *prop.Maximum)
		}
	}
	return ""
}

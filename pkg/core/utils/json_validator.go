package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/go-playground/validator/v10"
	hjson "github.com/hjson/hjson-go/v4"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct checks `validate` tags on v, or on every element when v is a slice.
func ValidateStruct(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// RepairJSON fixes hand-edit damage in JSON: missing quotes around keys,
// single quotes, trailing commas, comments, unclosed objects.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// ParseHJSON converts Hjson (comments, unquoted keys and strings, optional
// commas) to standard JSON.
func ParseHJSON(data string) (string, error) {
	var result any
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("hjson parse failed: %w", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("json marshal failed: %w", err)
	}
	return string(out), nil
}

// SmartParse decodes input into v trying, in order, standard JSON, repaired
// JSON and Hjson. It returns the JSON text that decoded successfully.
func SmartParse(input string, v any) (string, error) {
	input = strings.TrimPrefix(input, "\ufeff")

	if err := json.Unmarshal([]byte(input), v); err == nil {
		return input, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return repaired, nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return converted, nil
		}
	}

	return "", errors.New("all parsing strategies failed")
}

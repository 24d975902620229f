package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// FunctionSchema describes a callable tool: its name, what it does and the
// JSON Schema of its argument object.
type FunctionSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  ValueSchema `json:"parameters"`
}

// ValueSchema is the subset of JSON Schema used for tool arguments.
type ValueSchema struct {
	// Type is one of "string", "integer", "number", "boolean", "array" or "object".
	Type        string       `json:"type,omitempty"`
	Description string       `json:"description,omitempty"`
	Items       *ValueSchema `json:"items,omitempty"`
	// Properties is a pointer so that "no properties" and "empty properties"
	// marshal differently; MCP clients expect `"properties":{}` on argument-less tools.
	Properties *map[string]ValueSchema `json:"properties,omitempty"`
	// AdditionalProperties is nil (allow), a bool, or a ValueSchema.
	AdditionalProperties any      `json:"additionalProperties,omitempty"`
	Required             []string `json:"required,omitempty"`
	// Minimum applies to "integer" and "number" values.
	Minimum *float64 `json:"minimum,omitempty"`
}

func generateSchema(name, description string, typ reflect.Type) FunctionSchema {
	return FunctionSchema{
		Name:        name,
		Description: description,
		Parameters:  generateObjectSchema(typ),
	}
}

func fieldTypeToJSONSchema(t reflect.Type) ValueSchema {
	switch t.Kind() {
	case reflect.String:
		return ValueSchema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ValueSchema{Type: "integer"}
	case reflect.Bool:
		return ValueSchema{Type: "boolean"}
	case reflect.Float32, reflect.Float64:
		return ValueSchema{Type: "number"}
	case reflect.Slice, reflect.Array:
		itemSchema := fieldTypeToJSONSchema(t.Elem())
		return ValueSchema{Type: "array", Items: &itemSchema}
	case reflect.Map:
		return ValueSchema{Type: "object", AdditionalProperties: fieldTypeToJSONSchema(t.Elem())}
	case reflect.Struct:
		return generateObjectSchema(t)
	case reflect.Ptr:
		return fieldTypeToJSONSchema(t.Elem())
	default:
		panic("unsupported type: " + t.Kind().String())
	}
}

// generateObjectSchema builds an object schema from struct fields. Fields are
// required unless tagged omitempty. The `description` and `minimum` struct tags
// are copied into the property schema.
func generateObjectSchema(typ reflect.Type) ValueSchema {
	properties := make(map[string]ValueSchema)
	required := []string{}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		parts := strings.Split(jsonTag, ",")
		fieldName := field.Name
		if parts[0] != "" {
			fieldName = parts[0]
		}

		fieldSchema := fieldTypeToJSONSchema(field.Type)
		if description := field.Tag.Get("description"); description != "" {
			fieldSchema.Description = description
		}
		if minimum := field.Tag.Get("minimum"); minimum != "" {
			m, err := strconv.ParseFloat(minimum, 64)
			if err != nil {
				panic(fmt.Sprintf("invalid minimum tag on %s: %q", field.Name, minimum))
			}
			fieldSchema.Minimum = &m
		}
		properties[fieldName] = fieldSchema
		if len(parts) == 1 || parts[1] != "omitempty" {
			required = append(required, fieldName)
		}
	}
	return ValueSchema{
		Type:       "object",
		Properties: &properties,
		Required:   required,
	}
}

func validateJSON(schema *FunctionSchema, jsonData json.RawMessage) error {
	return validateParameters(schema.Parameters, jsonData)
}

func validateParameters(schema ValueSchema, jsonData json.RawMessage) error {
	if schema.Type != "object" || schema.Properties == nil {
		return errors.New("schema error: received an invalid object schema")
	}

	// Clients commonly omit the arguments object for argument-less tools.
	if len(jsonData) == 0 || string(jsonData) == "null" {
		jsonData = json.RawMessage("{}")
	}

	var dataMap map[string]any
	if err := json.Unmarshal(jsonData, &dataMap); err != nil {
		return errors.New("invalid JSON format")
	}

	for key, val := range dataMap {
		fieldSchema, found := (*schema.Properties)[key]
		if found {
			if err := validateField(fieldSchema, val); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			continue
		}

		switch ap := schema.AdditionalProperties.(type) {
		case nil:
			continue
		case bool:
			if !ap {
				return fmt.Errorf("additional property %q not allowed", key)
			}
		case ValueSchema:
			if err := validateField(ap, val); err != nil {
				return fmt.Errorf("additional property %q: %w", key, err)
			}
		default:
			return fmt.Errorf("invalid schema: AdditionalProperties has unexpected type %T", schema.AdditionalProperties)
		}
	}

	for _, field := range schema.Required {
		if _, exists := dataMap[field]; !exists {
			return fmt.Errorf("missing required field: %q", field)
		}
	}

	return nil
}

func validateField(fieldSchema ValueSchema, data any) error {
	switch fieldSchema.Type {
	case "integer":
		num, ok := data.(float64)
		if !ok || num != float64(int64(num)) {
			return fmt.Errorf("type mismatch: expected integer, got %T", data)
		}
		return checkMinimum(fieldSchema, num)
	case "number":
		num, ok := data.(float64)
		if !ok {
			return fmt.Errorf("type mismatch: expected number, got %T", data)
		}
		return checkMinimum(fieldSchema, num)
	case "string":
		if _, ok := data.(string); !ok {
			return fmt.Errorf("type mismatch: expected string, got %T", data)
		}
	case "boolean":
		if _, ok := data.(bool); !ok {
			return fmt.Errorf("type mismatch: expected boolean, got %T", data)
		}
	case "array":
		items, ok := data.([]any)
		if !ok {
			return fmt.Errorf("type mismatch: expected array, got %T", data)
		}
		if fieldSchema.Items == nil {
			return errors.New("schema error: missing item schema for array")
		}
		for _, item := range items {
			if err := validateField(*fieldSchema.Items, item); err != nil {
				return err
			}
		}
	case "object":
		properties, ok := data.(map[string]any)
		if !ok {
			return fmt.Errorf("type mismatch: expected object, got %T", data)
		}
		jsonData, err := json.Marshal(properties)
		if err != nil {
			return errors.New("failed to marshal object data for validation")
		}
		return validateParameters(fieldSchema, jsonData)
	case "":
		return errors.New("schema type is missing")
	default:
		return fmt.Errorf("unsupported type: %s", fieldSchema.Type)
	}
	return nil
}

func checkMinimum(fieldSchema ValueSchema, num float64) error {
	if fieldSchema.Minimum != nil && num < *fieldSchema.Minimum {
		return fmt.Errorf("value %v is below minimum %v", num, *fieldSchema.Minimum)
	}
	return nil
}

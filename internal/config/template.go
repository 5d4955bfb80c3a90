package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
)

// ExpandTemplates rewrites, in place, every exported string field of the struct
// pointed to by in that carries a `template` tag, along with []string fields that
// carry it and every map[string]string value. Nested structs and non-nil struct
// pointers are walked. `template:"-"` opts a field out.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}

	v := reflect.ValueOf(in).Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("ExpandTemplates expects *struct; got *%s", v.Type())
	}

	return expandStruct(v, variables)
}

func expandStruct(v reflect.Value, variables map[string]string) error {
	typ := v.Type()
	var errs error

	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}

		field := v.Field(i)
		tag, tagged := sf.Tag.Lookup("template")
		tagged = tagged && tag != "-"

		switch field.Kind() {
		case reflect.String:
			if !tagged {
				continue
			}
			expanded, err := Expand(field.String(), variables)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s: %w", sf.Name, err))
				continue
			}
			field.SetString(expanded)

		case reflect.Slice:
			if !tagged || field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				el := field.Index(j)
				expanded, err := Expand(el.String(), variables)
				if err != nil {
					errs = errors.Join(errs, fmt.Errorf("%s[%d]: %w", sf.Name, j, err))
					continue
				}
				el.SetString(expanded)
			}

		case reflect.Map:
			if field.IsNil() || field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
				continue
			}
			expanded, err := ExpandMap(field.Interface().(map[string]string), variables)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s: %w", sf.Name, err))
				continue
			}
			field.Set(reflect.ValueOf(expanded))

		case reflect.Ptr:
			if field.IsNil() || field.Elem().Kind() != reflect.Struct {
				continue
			}
			errs = errors.Join(errs, expandStruct(field.Elem(), variables))

		case reflect.Struct:
			errs = errors.Join(errs, expandStruct(field, variables))
		}
	}

	return errs
}

// Expand replaces ${VAR} references in value using variables.
// Returns an error for every reference that is not in variables.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("environment variable %q is not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}

	return result, nil
}

// ExpandMap expands all values of values into a new map.
func ExpandMap(values map[string]string, variables map[string]string) (map[string]string, error) {
	result := make(map[string]string, len(values))
	var errs error

	for k, v := range values {
		expanded, err := Expand(v, variables)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		result[k] = expanded
	}

	if errs != nil {
		return nil, errs
	}

	return result, nil
}

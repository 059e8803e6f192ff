package runner

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// ExpandTemplates expands ${VAR} references in place in the struct, or slice
// of structs, pointed to by in.
//
// string, *string and []string fields are expanded only when they carry a
// `template` struct tag other than `template:"-"`. map[string]string values
// are always expanded. Nested structs, pointers to structs and slices of
// either are walked regardless of tags. Every failure is reported, each
// prefixed with the yaml path of the offending field.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}

	e := &expander{variables: variables}
	v := reflect.ValueOf(in).Elem()
	switch v.Kind() {
	case reflect.Struct:
		e.walkStruct(v, "")
	case reflect.Slice:
		e.walkSlice(v, "", false)
	default:
		return fmt.Errorf("ExpandTemplates expects *struct or *[]struct; got *%s", v.Type())
	}
	return e.errs
}

type expander struct {
	variables map[string]string
	errs      error
}

func (e *expander) expand(value, at string) (string, bool) {
	expanded, err := Expand(value, e.variables)
	if err != nil {
		if at != "" {
			err = fmt.Errorf("%s: %w", at, err)
		}
		e.errs = errors.Join(e.errs, err)
		return "", false
	}
	return expanded, true
}

func fieldPath(parent string, sf reflect.StructField) string {
	name := strings.Split(sf.Tag.Get("yaml"), ",")[0]
	if name == "" {
		name = sf.Name
	}
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func (e *expander) walkStruct(v reflect.Value, at string) {
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, tagged := sf.Tag.Lookup("template")
		templated := tagged && tag != "-"
		e.walkField(v.Field(i), fieldPath(at, sf), templated)
	}
}

func (e *expander) walkField(field reflect.Value, at string, templated bool) {
	switch field.Kind() {
	case reflect.String:
		if !templated {
			return
		}
		if expanded, ok := e.expand(field.String(), at); ok {
			field.SetString(expanded)
		}

	case reflect.Ptr:
		if field.IsNil() {
			return
		}
		elem := field.Elem()
		switch elem.Kind() {
		case reflect.String:
			if !templated {
				return
			}
			// Replace the pointer rather than writing through it; the
			// pointee may be shared.
			if expanded, ok := e.expand(elem.String(), at); ok {
				ptr := reflect.New(elem.Type())
				ptr.Elem().SetString(expanded)
				field.Set(ptr)
			}
		case reflect.Struct:
			e.walkStruct(elem, at)
		}

	case reflect.Map:
		if field.IsNil() || field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return
		}
		expanded := make(map[string]string, field.Len())
		failed := false
		iter := field.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			value, ok := e.expand(iter.Value().String(), at+"."+key)
			failed = failed || !ok
			expanded[key] = value
		}
		if !failed {
			field.Set(reflect.ValueOf(expanded).Convert(field.Type()))
		}

	case reflect.Struct:
		e.walkStruct(field, at)

	case reflect.Slice:
		e.walkSlice(field, at, templated)
	}
}

func (e *expander) walkSlice(v reflect.Value, at string, templated bool) {
	if v.IsNil() {
		return
	}
	elem := v.Type().Elem()
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		itemAt := fmt.Sprintf("%s[%d]", at, i)
		switch {
		case elem.Kind() == reflect.String:
			if !templated {
				return
			}
			if expanded, ok := e.expand(item.String(), itemAt); ok {
				item.SetString(expanded)
			}
		case elem.Kind() == reflect.Struct:
			e.walkStruct(item, itemAt)
		case elem.Kind() == reflect.Ptr && elem.Elem().Kind() == reflect.Struct:
			if !item.IsNil() {
				e.walkStruct(item.Elem(), itemAt)
			}
		default:
			return
		}
	}
}

// Expand replaces ${VAR} and $VAR references in value. Every reference must
// be present in variables.
func Expand(value string, variables map[string]string) (string, error) {
	var missing []string

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		missing = append(missing, key)
		return ""
	})

	if len(missing) > 0 {
		errs := make([]error, 0, len(missing))
		for _, key := range missing {
			errs = append(errs, fmt.Errorf("variable %q is not in the allowed list", key))
		}
		return "", errors.Join(errs...)
	}

	return result, nil
}

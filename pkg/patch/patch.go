// Package patch merges partial updates onto records. A patch is a struct
// whose fields are all pointers; a nil pointer means "absent" and leaves the
// destination untouched. Field names must match the destination struct.
package patch

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var ErrInvalidTarget = errors.New("patch: destination must be a non-nil struct pointer")

// Column is one SET assignment derived from a patch.
type Column struct {
	Name  string
	Value interface{}
}

// Apply copies every present field of p onto dst and returns the json names
// of the fields it applied, in declaration order.
func Apply(dst, p interface{}) ([]string, error) {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidTarget
	}
	dv = dv.Elem()

	pv, ok := structValue(p)
	if !ok {
		return nil, nil
	}
	pt := pv.Type()

	var applied []string
	for i := 0; i < pt.NumField(); i++ {
		sf := pt.Field(i)
		fv := pv.Field(i)
		if !sf.IsExported() || fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}

		target := dv.FieldByName(sf.Name)
		if !target.IsValid() || !target.CanSet() {
			return applied, fmt.Errorf("patch: %s has no field %s", dv.Type(), sf.Name)
		}
		if err := assign(target, fv.Elem()); err != nil {
			return applied, fmt.Errorf("patch: field %s: %w", sf.Name, err)
		}
		applied = append(applied, jsonName(sf))
	}
	return applied, nil
}

func assign(target, val reflect.Value) error {
	tt := target.Type()
	switch {
	case val.Type().AssignableTo(tt):
		target.Set(val)
	case tt.Kind() == reflect.Ptr && val.Type().AssignableTo(tt.Elem()):
		nv := reflect.New(tt.Elem())
		nv.Elem().Set(val)
		target.Set(nv)
	case val.Type().ConvertibleTo(tt):
		target.Set(val.Convert(tt))
	default:
		return fmt.Errorf("cannot assign %s to %s", val.Type(), tt)
	}
	return nil
}

// Columns lists the db column assignments of the present fields. Fields
// tagged db:"-" or without a db tag are skipped.
func Columns(p interface{}) []Column {
	pv, ok := structValue(p)
	if !ok {
		return nil
	}
	pt := pv.Type()

	var cols []Column
	for i := 0; i < pt.NumField(); i++ {
		sf := pt.Field(i)
		fv := pv.Field(i)
		if !sf.IsExported() || fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		name := strings.Split(sf.Tag.Get("db"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		cols = append(cols, Column{Name: name, Value: fv.Elem().Interface()})
	}
	return cols
}

// Present returns the json names of the fields set in p.
func Present(p interface{}) []string {
	pv, ok := structValue(p)
	if !ok {
		return nil
	}
	pt := pv.Type()

	var names []string
	for i := 0; i < pt.NumField(); i++ {
		fv := pv.Field(i)
		if pt.Field(i).IsExported() && fv.Kind() == reflect.Ptr && !fv.IsNil() {
			names = append(names, jsonName(pt.Field(i)))
		}
	}
	return names
}

// IsEmpty reports whether p carries no fields.
func IsEmpty(p interface{}) bool {
	return len(Present(p)) == 0
}

func structValue(p interface{}) (reflect.Value, bool) {
	if p == nil {
		return reflect.Value{}, false
	}
	pv := reflect.ValueOf(p)
	if pv.Kind() == reflect.Ptr {
		if pv.IsNil() {
			return reflect.Value{}, false
		}
		pv = pv.Elem()
	}
	return pv, pv.Kind() == reflect.Struct
}

func jsonName(sf reflect.StructField) string {
	tag := strings.Split(sf.Tag.Get("json"), ",")[0]
	if tag == "" || tag == "-" {
		return strings.ToLower(sf.Name)
	}
	return tag
}

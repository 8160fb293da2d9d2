// Package mapper copies nested result records into Go structs.
package mapper

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	recordType = reflect.TypeOf(domain.Record{})
)

// MapToStruct copies rec into the struct dest points to. Fields are matched
// by json tag, then db tag, then case-insensitively by name. Included
// relations map into struct, pointer-to-struct and slice fields.
func MapToStruct(rec domain.Record, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct, got %T", dest)
	}
	return mapStruct(rec, v.Elem())
}

// MapToStructSlice copies records into the slice dest points to. The
// element type may be a struct or a pointer to one.
func MapToStructSlice(records []domain.Record, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to slice, got %T", dest)
	}
	return mapSlice(records, v.Elem())
}

func mapStruct(rec domain.Record, dest reflect.Value) error {
	t := dest.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := columnName(sf)
		if name == "-" {
			continue
		}
		value, ok := rec[name]
		if !ok {
			if value, ok = findCaseInsensitive(rec, name); !ok {
				continue
			}
		}
		if err := setValue(dest.Field(i), value); err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
	}
	return nil
}

func mapSlice(records []domain.Record, dest reflect.Value) error {
	elem := dest.Type().Elem()
	out := reflect.MakeSlice(dest.Type(), 0, len(records))
	for i, rec := range records {
		item := reflect.New(elem).Elem()
		if err := setValue(item, rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		out = reflect.Append(out, item)
	}
	dest.Set(out)
	return nil
}

func columnName(sf reflect.StructField) string {
	if tag := sf.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	if tag := sf.Tag.Get("db"); tag != "" {
		return tag
	}
	return sf.Name
}

func findCaseInsensitive(rec domain.Record, key string) (any, bool) {
	for k, v := range rec {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// setValue assigns value to field, converting between the driver's value
// types and the field's type.
func setValue(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if b, ok := value.([]byte); ok && field.Kind() != reflect.Slice {
		value = string(b)
	}

	if field.Kind() == reflect.Ptr {
		ptr := reflect.New(field.Type().Elem())
		if err := setValue(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	switch field.Kind() {
	case reflect.Struct:
		if field.Type() == timeType {
			return setTime(field, value)
		}
		rec, ok := value.(domain.Record)
		if !ok {
			return fmt.Errorf("cannot map %T to %s", value, field.Type())
		}
		return mapStruct(rec, field)

	case reflect.Slice:
		records, ok := value.([]domain.Record)
		if !ok {
			return fmt.Errorf("cannot map %T to %s", value, field.Type())
		}
		return mapSlice(records, field)

	case reflect.Map:
		if rec, ok := value.(domain.Record); ok && recordType.ConvertibleTo(field.Type()) {
			field.Set(reflect.ValueOf(rec).Convert(field.Type()))
			return nil
		}

	case reflect.String:
		field.SetString(fmt.Sprint(value))
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(value)
		if err != nil {
			return err
		}
		field.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt(value)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("cannot map negative %d to %s", n, field.Type())
		}
		field.SetUint(uint64(n))
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := toFloat(value)
		if err != nil {
			return err
		}
		field.SetFloat(f)
		return nil

	case reflect.Bool:
		switch v := value.(type) {
		case int64:
			field.SetBool(v != 0)
			return nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("cannot map %q to bool", v)
			}
			field.SetBool(b)
			return nil
		}

	case reflect.Interface:
		if rv.Type().Implements(field.Type()) {
			field.Set(rv)
			return nil
		}
	}
	return fmt.Errorf("cannot map %T to %s", value, field.Type())
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot map %q to int", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot map %T to int", value)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot map %q to float", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot map %T to float", value)
}

func setTime(field reflect.Value, value any) error {
	switch v := value.(type) {
	case time.Time:
		field.Set(reflect.ValueOf(v))
		return nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				field.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return fmt.Errorf("cannot parse time %q", v)
	}
	return fmt.Errorf("cannot map %T to time.Time", value)
}

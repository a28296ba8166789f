package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

var durationType = reflect.TypeOf(time.Duration(0))

// PrefixedEnvFeeder fills fields tagged `env:"NAME"` from PREFIX_NAME.
// Duration fields accept time.ParseDuration syntax; everything else is
// converted with golobby/cast.
type PrefixedEnvFeeder struct {
	Prefix string
}

// NewPrefixedEnvFeeder creates a PrefixedEnvFeeder. The prefix is upper-cased and
// a trailing underscore is optional.
func NewPrefixedEnvFeeder(prefix string) PrefixedEnvFeeder {
	return PrefixedEnvFeeder{Prefix: prefix}
}

// Feed implements config.Feeder.
func (f PrefixedEnvFeeder) Feed(structure any) error {
	if f.Prefix == "" {
		return ErrEnvEmptyPrefix
	}
	rv := reflect.ValueOf(structure)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrEnvInvalidStructure
	}
	prefix := strings.TrimSuffix(strings.ToUpper(f.Prefix), "_")
	return fillStruct(rv.Elem(), prefix)
}

func fillStruct(rv reflect.Value, prefix string) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)

		if field.Kind() == reflect.Struct && fieldType.Type != durationType {
			if err := fillStruct(field, prefix); err != nil {
				return err
			}
			continue
		}

		tag, ok := fieldType.Tag.Lookup("env")
		if !ok || tag == "" || tag == "-" {
			continue
		}
		value, ok := os.LookupEnv(prefix + "_" + strings.ToUpper(tag))
		if !ok || value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return ErrEnvFieldCannotBeSet
	}
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}
	converted, err := cast.FromType(value, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	return nil
}

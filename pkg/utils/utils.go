package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors turns validator errors into one error naming every missing or invalid
// env var. Values are never logged.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	problems := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		name := fe.Field()
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if tag := f.Tag.Get("mapstructure"); tag != "" {
				name = tag
			}
		}
		logger.Error("invalid_config", zap.String("key", name), zap.String("rule", fe.Tag()), zap.String("param", fe.Param()))
		problems = append(problems, fmt.Sprintf("%s (%s)", name, fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
}

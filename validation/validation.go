package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/searchsync/logger"
)

var entityTypePattern = regexp.MustCompile(`^\w+$`)

type Validator struct {
	validator                *validator.Validate
	logger                   logger.Logger
	tagValidationDetailsOnce sync.Once
	tagValidationDetailsMap  map[string]tagValidationDetails
}

type tagValidationDetails struct {
	validatorFunc validator.Func
	err           error
}

func New(logger logger.Logger) (*Validator, error) {
	validator := &Validator{validator: validator.New(), logger: logger}
	validator.validator.RegisterTagNameFunc(useJSONFieldNames)
	if err := validator.registerCustomValidatorsForTags(); err != nil {
		return nil, err
	}

	return validator, nil
}

func (v *Validator) Validate(i any) error {

	if err := v.validator.Struct(i); err != nil {
		v.logger.Warn("validation failed", "err", err.Error())
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {

			tagValidationDetails, ok := v.getTagValidationDetails()[validationErrs[0].Tag()]
			if ok {
				return tagValidationDetails.err
			}

			switch validationErrs[0].Tag() {
			case "required":
				return fmt.Errorf("missing required field '%s'", validationErrs[0].Field())

			case "min", "max", "gt":
				return fmt.Errorf("value or length of field '%s' is not in the expected range", validationErrs[0].Field())

			}
		}
		return err
	}
	return nil
}
func (v *Validator) getTagValidationDetails() map[string]tagValidationDetails {
	v.tagValidationDetailsOnce.Do(func() {
		v.tagValidationDetailsMap = map[string]tagValidationDetails{
			"valid_query":        {validatorFunc: v.isValidQuery, err: errors.New("invalid query")},
			"valid_entity_types": {validatorFunc: v.isValidEntityTypes, err: errors.New("invalid entity types")},
			"valid_name":         {validatorFunc: v.isValidName, err: errors.New("invalid name")},
		}
	})
	return v.tagValidationDetailsMap
}

func (v *Validator) registerCustomValidatorsForTags() error {

	tagValidationDetailsMap := v.getTagValidationDetails()

	for tag, tagValidationDetails := range tagValidationDetailsMap {
		if err := v.validator.RegisterValidation(tag, tagValidationDetails.validatorFunc); err != nil {
			v.logger.Error("failed to register customer validator function", "err", err.Error())
			return err
		}
	}
	return nil
}

func useJSONFieldNames(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if tag == "" {
		tag = fld.Tag.Get("form")
	}
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// isValidQuery accepts an empty query, which matches every record of the searched types.
func (v *Validator) isValidQuery(fl validator.FieldLevel) bool {
	query := fl.Field().String()
	if len(query) == 0 {
		return true
	}
	if strings.TrimSpace(query) == "" {
		v.logger.Warn("query is blank", "query", query)
		return false
	}
	if strings.Contains(query, "\x00") {
		v.logger.Warn("query has null byte")
		return false
	}

	return true
}

// isValidEntityTypes checks a comma separated list of entity type names.
func (v *Validator) isValidEntityTypes(fl validator.FieldLevel) bool {
	entityTypes := fl.Field().String()
	if strings.TrimSpace(entityTypes) == "" {
		return false
	}

	for _, entityType := range strings.Split(entityTypes, ",") {
		if !entityTypePattern.MatchString(strings.TrimSpace(entityType)) {
			v.logger.Warn("invalid entity type name", "entity_type", entityType)
			return false
		}
	}

	return true
}

func (v *Validator) isValidName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if len(name) == 0 {
		return true
	}

	return entityTypePattern.MatchString(name)
}

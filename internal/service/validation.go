package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

// RegisterRecordValidations installs the tags used on the record models and
// reports fields by their JSON names.
func RegisterRecordValidations(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		return models.ValidID(fl.Field().String())
	})
	return validate
}

// checkFields applies the model's field constraints.
func checkFields(validate *validator.Validate, e models.Entity) error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+string(e.Kind()))
	}
	first := fieldErrs[0]
	field := strings.TrimPrefix(first.Namespace(), reflect.TypeOf(e).Elem().Name()+".")
	return appErrors.WithDetail(appErrors.FieldInvalid(field, describeTag(first)), "kind", string(e.Kind()))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "must not be blank"
	case "required":
		return "is required"
	case "entityid":
		return fmt.Sprintf("%q is not a well-formed id", fe.Value())
	case "email":
		return "must be a valid email address"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag() + " validation"
}

// checkReferences fails with a dangling reference error naming the first id
// of e that has no entity of the expected kind in g.
func checkReferences(g *models.Graph, e models.Entity) error {
	switch v := e.(type) {
	case *models.Student:
		return requireAll(g, models.KindCourse, v.RegisteredCourseIDs)
	case *models.Instructor:
		return requireAll(g, models.KindCourse, v.AssignedCourseIDs)
	case *models.Course:
		if v.HasInstructor() && !g.Exists(models.KindInstructor, v.InstructorID) {
			return appErrors.Dangling(string(models.KindInstructor), v.InstructorID)
		}
		return requireAll(g, models.KindStudent, v.EnrolledStudentIDs)
	}
	return nil
}

func requireAll(g *models.Graph, kind models.Kind, ids models.IDList) error {
	for _, id := range ids {
		if !g.Exists(kind, id) {
			return appErrors.Dangling(string(kind), id)
		}
	}
	return nil
}

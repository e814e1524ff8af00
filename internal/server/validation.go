package server

import (
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"scrumboard/internal/models"
	"scrumboard/internal/roles"
)

var registerOnce sync.Once

// registerValidators adds the enum tags used by request bodies to gin's
// validator: globalrole, projectrole, taskstatus and projectstatus.
func registerValidators(logger *slog.Logger) {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("gin validator engine is not go-playground; enum tags unavailable")
			return
		}
		tags := map[string]validator.Func{
			"globalrole": func(fl validator.FieldLevel) bool {
				return roles.GlobalRole(fl.Field().String()).Valid()
			},
			"projectrole": func(fl validator.FieldLevel) bool {
				return roles.ProjectRole(fl.Field().String()).Valid()
			},
			"taskstatus": func(fl validator.FieldLevel) bool {
				_, ok := models.ValidTaskStatuses[models.TaskStatus(fl.Field().String())]
				return ok
			},
			"projectstatus": func(fl validator.FieldLevel) bool {
				_, ok := models.ValidProjectStatuses[models.ProjectStatus(fl.Field().String())]
				return ok
			},
		}
		for tag, fn := range tags {
			if err := v.RegisterValidation(tag, fn); err != nil {
				logger.Error("register validator", slog.String("tag", tag), slog.String("error", err.Error()))
			}
		}
	})
}

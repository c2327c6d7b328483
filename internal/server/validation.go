package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxDisplayNameLength = 40
	maxPhaseLength       = 32
	minStartSeconds      = 30
	maxStartSeconds      = 3600
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
			_, err := validateDisplayName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("phase", func(fl validator.FieldLevel) bool {
			_, err := validatePhase(fl.Field().String())
			return err == nil
		})
	})
}

func validateDisplayName(name string) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" {
		return "", errors.New("display name is required")
	}
	if len([]rune(trimmed)) > maxDisplayNameLength {
		return "", fmt.Errorf("display name must be %d characters or fewer", maxDisplayNameLength)
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return "", errors.New("display name contains unsupported characters")
		}
	}
	return trimmed, nil
}

// validatePhase accepts any lowercase slug. Which phases follow which is
// the host's business.
func validatePhase(phase string) (string, error) {
	trimmed := strings.TrimSpace(phase)
	if trimmed == "" {
		return "", errors.New("phase is required")
	}
	if len(trimmed) > maxPhaseLength {
		return "", fmt.Errorf("phase must be %d characters or fewer", maxPhaseLength)
	}
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return "", errors.New("phase contains unsupported characters")
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

package units

import (
	"fmt"
	"strings"

	"github.com/rencana-app/rencana/internal/shared"
)

func (s *Service) validate(u Unit) error {
	if strings.TrimSpace(u.Code) == "" {
		return fmt.Errorf("%w: unit code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: unit name is required", shared.ErrValidation)
	}
	return nil
}

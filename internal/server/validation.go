package server

import (
	"fmt"
	"regexp"
	"strings"

	"eduops/internal/models"
)

var idRegex = regexp.MustCompile(`^[a-z]{3}-[0-9a-z]{6}$`)

// validateID checks server-assigned parent ids (prg-, act-, doc-, evt-).
func validateID(id string) bool {
	return idRegex.MatchString(id)
}

// kindFromSegment maps a collection path segment to an attachment kind.
func kindFromSegment(segment string) (models.AttachmentKind, error) {
	switch strings.TrimSpace(segment) {
	case "programs", "program":
		return models.AttachmentKindProgram, nil
	case "activities", "activity":
		return models.AttachmentKindActivity, nil
	case "documentation":
		return models.AttachmentKindDocumentation, nil
	default:
		return "", badRequestCode(fmt.Errorf("invalid attachment kind %q", segment), ErrCodeInvalidKind)
	}
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", badRequestCode(fmt.Errorf("%s is required", field), ErrCodeMissingRequired)
	}
	return value, nil
}

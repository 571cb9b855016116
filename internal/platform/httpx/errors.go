// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/weftpos/weftpos/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Structured
// error context travels in the Meta field so clients can inspect shortfalls
// and conflicting ids without parsing the detail string.
func RespondError(w http.ResponseWriter, err error) {
	var de *shared.Error
	if !errors.As(err, &de) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	status, title := http.StatusInternalServerError, "Internal Error"
	switch de.Kind {
	case shared.KindValidation:
		status, title = http.StatusUnprocessableEntity, "Validation Failed"
	case shared.KindNotFound:
		status, title = http.StatusNotFound, "Not Found"
	case shared.KindConflict:
		status, title = http.StatusConflict, "Conflict"
	case shared.KindPermission:
		status, title = http.StatusForbidden, "Forbidden"
	}
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: de.Msg,
		Meta:   de.Meta,
	})
}

package httpapi

import (
	"net/http"

	"github.com/relaygate/gateway/infrastructure/errors"
	"github.com/relaygate/gateway/infrastructure/httputil"
	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/storage"
)

// writeServiceError renders any *errors.ServiceError through the §7
// taxonomy's HTTP status/code mapping, falling back to 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		httputil.WriteErrorResponse(w, r, http.StatusInternalServerError, string(errors.ErrCodeInternal), err.Error(), nil)
		return
	}
	httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}

func auditEvent(eventType storage.AuditEventType, userID, resource, resourceID string, details map[string]interface{}, _ *Server) *storage.AuditEvent {
	return audit.Event(eventType, userID, resource, resourceID, details)
}

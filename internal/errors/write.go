package errors

import (
	"encoding/json"
	"net/http"
)

// errorResponse estructura interna para la serialización JSON.
// Controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Detail           string `json:"detail,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Los errores no categorizados que no son de entrada del caller
// (internal_error) salen como error genérico: el detalle queda en logs.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Error:            appErr.Code,
		ErrorDescription: appErr.Message,
		Detail:           appErr.Detail,
		RequestID:        w.Header().Get("X-Request-ID"),
	}

	// Nunca filtrar causas internas al cliente.
	if appErr.Kind == KindInternal && appErr.Code == CodeInternal {
		resp.ErrorDescription = ErrInternal.Message
		resp.Detail = ""
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(StatusOf(appErr))
	_ = json.NewEncoder(w).Encode(resp)
}

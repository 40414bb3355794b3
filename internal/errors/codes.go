package errors

import "net/http"

// Sub-códigos de máquina. Son contrato de API: no renombrar.

// OAuth / ciclo de tokens.
const (
	CodeTokenExpired             = "token_expired"
	CodeInvalidToken             = "invalid_token"
	CodeNoRefreshToken           = "no_refresh_token"
	CodeInvalidAuthorizationCode = "invalid_authorization_code"
	CodeInvalidConfiguration     = "invalid_configuration"
	CodeTokenExchangeFailed      = "token_exchange_failed"
	CodeTokenRefreshFailed       = "token_refresh_failed"
	CodeUserInfoFailed           = "user_info_failed"
)

// Correo (construcción/validación/transmisión).
const (
	CodeInvalidRecipient    = "invalid_recipient"
	CodeEmptySubject        = "empty_subject"
	CodeEmptyContent        = "empty_content"
	CodeInvalidEmailFormat  = "invalid_email_format"
	CodeInvalidAttachment   = "invalid_attachment"
	CodeSizeLimitExceeded   = "size_limit_exceeded"
	CodeSendLimitExceeded   = "send_limit_exceeded"
	CodeProviderUnavailable = "provider_unavailable"
	CodeQuotaExceeded       = "quota_exceeded"
	CodeSendTimeout         = "send_timeout"
	CodeNetworkError        = "network_error"
)

// No categorizados (entrada del caller / infraestructura).
const (
	CodeInvalidProvider       = "invalid_provider"
	CodeConfigurationNotFound = "configuration_not_found"
	CodeInvalidJSON           = "invalid_json"
	CodeUnauthorized          = "unauthorized"
	CodeInternal              = "internal_error"
)

// =================================================================================
// ERRORES PREDEFINIDOS - OAUTH
// =================================================================================

var (
	ErrTokenExpired = &AppError{
		Kind:       KindOAuth,
		Code:       CodeTokenExpired,
		Message:    "El token de acceso ha expirado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidToken = &AppError{
		Kind:       KindOAuth,
		Code:       CodeInvalidToken,
		Message:    "No hay un token de acceso válido para esta configuración.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrNoRefreshToken = &AppError{
		Kind:       KindOAuth,
		Code:       CodeNoRefreshToken,
		Message:    "No hay refresh token almacenado. Se requiere re-autorizar el flujo completo.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidAuthorizationCode = &AppError{
		Kind:       KindOAuth,
		Code:       CodeInvalidAuthorizationCode,
		Message:    "El código de autorización es inválido o está vacío.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidConfiguration = &AppError{
		Kind:       KindOAuth,
		Code:       CodeInvalidConfiguration,
		Message:    "La configuración OAuth es inválida para esta operación.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTokenExchangeFailed = &AppError{
		Kind:       KindOAuth,
		Code:       CodeTokenExchangeFailed,
		Message:    "El intercambio del código por tokens falló contra el proveedor.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrTokenRefreshFailed = &AppError{
		Kind:       KindOAuth,
		Code:       CodeTokenRefreshFailed,
		Message:    "La renovación del token falló contra el proveedor.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrUserInfoFailed = &AppError{
		Kind:       KindOAuth,
		Code:       CodeUserInfoFailed,
		Message:    "No se pudo obtener el perfil del usuario desde el proveedor.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrOAuthState = &AppError{
		Kind:       KindOAuth,
		Code:       CodeTokenExchangeFailed,
		Message:    "El parámetro state es inválido o no contiene la configuración.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// =================================================================================
// ERRORES PREDEFINIDOS - EMAIL
// =================================================================================

var (
	ErrInvalidRecipient = &AppError{
		Kind:       KindEmail,
		Code:       CodeInvalidRecipient,
		Message:    "El destinatario es requerido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrEmptySubject = &AppError{
		Kind:       KindEmail,
		Code:       CodeEmptySubject,
		Message:    "El asunto del correo no puede estar vacío.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrEmptyContent = &AppError{
		Kind:       KindEmail,
		Code:       CodeEmptyContent,
		Message:    "El contenido del correo no puede estar vacío.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidEmailFormat = &AppError{
		Kind:       KindEmail,
		Code:       CodeInvalidEmailFormat,
		Message:    "Una o más direcciones de correo tienen formato inválido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidAttachment = &AppError{
		Kind:       KindEmail,
		Code:       CodeInvalidAttachment,
		Message:    "Uno de los adjuntos es inválido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrSizeLimitExceeded = &AppError{
		Kind:       KindEmail,
		Code:       CodeSizeLimitExceeded,
		Message:    "El mensaje excede el tamaño máximo permitido por el proveedor.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	ErrSendLimitExceeded = &AppError{
		Kind:       KindEmail,
		Code:       CodeSendLimitExceeded,
		Message:    "Se alcanzó el límite de envíos para esta configuración. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrProviderUnavailable = &AppError{
		Kind:       KindEmail,
		Code:       CodeProviderUnavailable,
		Message:    "El proveedor de correo no está disponible.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrQuotaExceeded = &AppError{
		Kind:       KindEmail,
		Code:       CodeQuotaExceeded,
		Message:    "El proveedor rechazó el envío por límite de cuota.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrSendTimeout = &AppError{
		Kind:       KindEmail,
		Code:       CodeSendTimeout,
		Message:    "El envío excedió el tiempo máximo de espera.",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	ErrNetworkError = &AppError{
		Kind:       KindEmail,
		Code:       CodeNetworkError,
		Message:    "El proveedor rechazó el envío del correo.",
		HTTPStatus: http.StatusBadGateway,
	}
)

// =================================================================================
// ERRORES PREDEFINIDOS - NO CATEGORIZADOS
// =================================================================================

var (
	ErrInvalidProvider = &AppError{
		Kind:       KindInternal,
		Code:       CodeInvalidProvider,
		Message:    "El proveedor especificado no está soportado.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrConfigurationNotFound = &AppError{
		Kind:       KindInternal,
		Code:       CodeConfigurationNotFound,
		Message:    "La configuración especificada no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInvalidJSON = &AppError{
		Kind:       KindInternal,
		Code:       CodeInvalidJSON,
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Kind:       KindInternal,
		Code:       CodeUnauthorized,
		Message:    "Se requiere una clave de administrador válida.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInternal = &AppError{
		Kind:       KindInternal,
		Code:       CodeInternal,
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// Package types define tipos de dominio compartidos entre paquetes.
package types

import "strings"

// Provider identifica un proveedor OAuth/correo soportado.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// ParseProvider normaliza un nombre de proveedor (case-insensitive, trimmed).
// Retorna "" si el nombre no corresponde a un proveedor soportado.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ProviderGoogle):
		return ProviderGoogle
	case string(ProviderMicrosoft):
		return ProviderMicrosoft
	}
	return ""
}

// IsValid retorna true si el proveedor es uno de los soportados.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderMicrosoft:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

// Package repository define el contrato de persistencia de dominio.
//
// Las interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL, SQLite, memoria).
//
// Las implementaciones concretas viven en internal/store/.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los lookups por ID excluyen filas con deleted_at (soft delete)
//   - Errores de dominio están en errors.go
package repository

// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request puede llevar un logger "scoped" con campos
//     adicionales (request_id, config_id, provider) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),   // "dev" o "prod"
//	    Level: os.Getenv("LOG_LEVEL"), // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En handlers/adapters (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("token refreshed", logger.ConfigID(id), logger.Provider("google"))
//
// Sin contexto (fallback a singleton):
//
//	logger.L().Info("service started")
//
// Nunca loguear valores de tokens ni client_secret; usar logger.HasToken para
// registrar sólo presencia.
package logger

// Package cache define el contrato mínimo de cache de bytes con TTL.
// Lo usa el flujo OAuth para los nonces anti-forgery del parámetro state.
package cache

import "time"

type Cache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

package types

// TokenData es el resultado transitorio de un intercambio o refresh de tokens.
// No se persiste como entidad propia: el adapter lo convierte en la forma
// almacenada de la configuración via StoreToken.
type TokenData struct {
	AccessToken  string
	RefreshToken string // puede venir vacío: Google lo omite en refresh
	ExpiresIn    int    // segundos
	TokenType    string
	Scope        string

	// UserInfo es el perfil crudo del proveedor, adjuntado por el callback
	// para poblar userEmail en el primer store. Shape provider-specific.
	UserInfo map[string]any
}

// HasRefreshToken retorna true si el proveedor emitió refresh token.
func (t *TokenData) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != ""
}

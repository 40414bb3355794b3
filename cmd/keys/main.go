// Genera credenciales de arranque: la clave admin del API (con su hash
// bcrypt para admin.api_key_hash) y el secreto HMAC del state OAuth.
// No toca el store; los valores van a config.yaml o al .env.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		cmdGenAdminKey    = flag.Bool("gen-admin-key", false, "genera una clave admin nueva junto con su hash bcrypt")
		cmdHashAdminKey   = flag.String("hash-admin-key", "", "calcula el hash bcrypt de una clave ya existente")
		cmdGenStateSecret = flag.Bool("gen-state-secret", false, "genera un secreto para oauth.state_secret")
		flagCost          = flag.Int("cost", bcrypt.DefaultCost, "costo bcrypt para el hash de la clave admin")
	)
	flag.Parse()

	switch {
	case *cmdGenAdminKey:
		key := randomKey(32, base64.RawURLEncoding)
		hash, err := bcrypt.GenerateFromPassword([]byte(key), *flagCost)
		if err != nil {
			fmt.Printf("❌ Error hashing key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("🔐 MailJohn - Admin Key Generator")
		fmt.Printf("✅ Generated key (shown once, store it now): %s\n", key)
		fmt.Println("\n💡 Add the hash to your config or .env file:")
		fmt.Printf("ADMIN_API_KEY_HASH=%s\n", string(hash))
	case *cmdHashAdminKey != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(*cmdHashAdminKey), *flagCost)
		if err != nil {
			fmt.Printf("❌ Error hashing key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ADMIN_API_KEY_HASH=%s\n", string(hash))
	case *cmdGenStateSecret:
		fmt.Println("🔐 MailJohn - State Secret Generator")
		fmt.Println("Generating 32-byte base64 key for OAUTH_STATE_SECRET...")
		key := randomKey(32, base64.StdEncoding)
		fmt.Printf("✅ Generated key: %s\n", key)
		fmt.Println("\n💡 Add this to your .env file:")
		fmt.Printf("OAUTH_STATE_SECRET=%s\n", key)
	default:
		fmt.Println("usage:")
		fmt.Println("  keys -gen-admin-key [-cost 10]")
		fmt.Println("  keys -hash-admin-key <clave> [-cost 10]")
		fmt.Println("  keys -gen-state-secret")
	}
}

func randomKey(n int, enc *base64.Encoding) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		fmt.Printf("❌ Error generating key: %v\n", err)
		os.Exit(1)
	}
	return enc.EncodeToString(b)
}

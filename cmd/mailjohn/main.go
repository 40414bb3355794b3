package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	AdminKey  string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.AdminKey != "" {
		req.Header.Set("X-Admin-API-Key", c.AdminKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) run(method, path string, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	status, raw, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("fallo: status=%d body=%s", status, string(raw))
	}
	c.print(status, raw)
	return nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL  = envOr("MAILJOHN_API_URL", "http://localhost:8080")
		adminKey = envOr("MAILJOHN_ADMIN_KEY", "")
		out      = envOr("MAILJOHN_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "mailjohn",
		Short: "CLI para el servicio de configuraciones de correo OAuth",
	}
	root.PersistentFlags().StringVar(&baseURL, "api-url", baseURL, "URL base del API (env MAILJOHN_API_URL)")
	root.PersistentFlags().StringVar(&adminKey, "admin-key", adminKey, "clave admin X-Admin-API-Key (env MAILJOHN_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL = baseURL
		cl.AdminKey = adminKey
		cl.OutFormat = out
	}

	// ── configs ──
	configsCmd := &cobra.Command{Use: "configs", Short: "Operaciones sobre configuraciones"}

	var listVendor, listLocation int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar configuraciones de un vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listVendor < 1 {
				return fmt.Errorf("--vendor es requerido")
			}
			q := url.Values{"vendorId": {fmt.Sprint(listVendor)}}
			if listLocation > 0 {
				q.Set("locationId", fmt.Sprint(listLocation))
			}
			return cl.run("GET", "/v1/configurations?"+q.Encode(), nil)
		},
	}
	listCmd.Flags().IntVar(&listVendor, "vendor", 0, "vendor id")
	listCmd.Flags().IntVar(&listLocation, "location", 0, "location id (opcional)")

	getCmd := &cobra.Command{
		Use:   "get <config-id>",
		Short: "Traer una configuración",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/configurations/"+args[0], nil)
		},
	}

	var (
		crVendor, crLocation                   int
		crProvider, crClientID, crClientSecret string
		crTenant, crRedirectURI, crUserEmail   string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear una configuración (requiere clave admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"vendorId":     crVendor,
				"locationId":   crLocation,
				"provider":     crProvider,
				"clientId":     crClientID,
				"clientSecret": crClientSecret,
				"redirectUri":  crRedirectURI,
			}
			if crTenant != "" {
				payload["tenantId"] = crTenant
			}
			if crUserEmail != "" {
				payload["userEmail"] = crUserEmail
			}
			return cl.run("POST", "/v1/configurations", payload)
		},
	}
	createCmd.Flags().IntVar(&crVendor, "vendor", 0, "vendor id")
	createCmd.Flags().IntVar(&crLocation, "location", 0, "location id")
	createCmd.Flags().StringVar(&crProvider, "provider", "", "google|microsoft")
	createCmd.Flags().StringVar(&crClientID, "client-id", "", "OAuth client id")
	createCmd.Flags().StringVar(&crClientSecret, "client-secret", "", "OAuth client secret")
	createCmd.Flags().StringVar(&crTenant, "tenant", "", "tenant Microsoft (opcional)")
	createCmd.Flags().StringVar(&crRedirectURI, "redirect-uri", "", "redirect URI registrada")
	createCmd.Flags().StringVar(&crUserEmail, "user-email", "", "email del dueño (opcional)")

	deleteCmd := &cobra.Command{
		Use:   "delete <config-id>",
		Short: "Borrar (soft) una configuración (requiere clave admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("DELETE", "/v1/configurations/"+args[0], nil)
		},
	}

	configsCmd.AddCommand(listCmd, getCmd, createCmd, deleteCmd)

	// ── auth ──
	authCmd := &cobra.Command{Use: "auth", Short: "Flujo de autorización"}
	authURLCmd := &cobra.Command{
		Use:   "url <config-id>",
		Short: "Generar la URL de autorización del proveedor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/configurations/"+args[0]+"/auth-url", nil)
		},
	}
	authCmd.AddCommand(authURLCmd)

	// ── send ──
	var (
		sendTo, sendSubject, sendContent string
		sendCc, sendBcc                  []string
		sendHTML                         bool
	)
	sendCmd := &cobra.Command{
		Use:   "send <config-id>",
		Short: "Enviar un correo en nombre del usuario autorizado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"to":      sendTo,
				"subject": sendSubject,
				"content": sendContent,
			}
			if sendHTML {
				payload["contentType"] = "text/html"
			}
			if len(sendCc) > 0 {
				payload["cc"] = sendCc
			}
			if len(sendBcc) > 0 {
				payload["bcc"] = sendBcc
			}
			return cl.run("POST", "/v1/configurations/"+args[0]+"/send", payload)
		},
	}
	sendCmd.Flags().StringVar(&sendTo, "to", "", "destinatario")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "asunto")
	sendCmd.Flags().StringVar(&sendContent, "content", "", "cuerpo del mensaje")
	sendCmd.Flags().StringSliceVar(&sendCc, "cc", nil, "con copia")
	sendCmd.Flags().StringSliceVar(&sendBcc, "bcc", nil, "con copia oculta")
	sendCmd.Flags().BoolVar(&sendHTML, "html", false, "enviar como text/html")

	// ── token ──
	tokenCmd := &cobra.Command{Use: "token", Short: "Operaciones sobre el token almacenado"}
	refreshCmd := &cobra.Command{
		Use:   "refresh <config-id>",
		Short: "Forzar un refresh del access token (requiere clave admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/configurations/"+args[0]+"/refresh", nil)
		},
	}
	revokeCmd := &cobra.Command{
		Use:   "revoke <config-id>",
		Short: "Revocar y limpiar los tokens (requiere clave admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/configurations/"+args[0]+"/revoke", nil)
		},
	}
	validateCmd := &cobra.Command{
		Use:   "validate <config-id>",
		Short: "Sondear el token almacenado contra el proveedor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/configurations/"+args[0]+"/token/validate", nil)
		},
	}
	tokenCmd.AddCommand(refreshCmd, revokeCmd, validateCmd)

	userinfoCmd := &cobra.Command{
		Use:   "userinfo <config-id>",
		Short: "Perfil del usuario autorizado según el proveedor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/configurations/"+args[0]+"/userinfo", nil)
		},
	}

	root.AddCommand(configsCmd, authCmd, sendCmd, tokenCmd, userinfoCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

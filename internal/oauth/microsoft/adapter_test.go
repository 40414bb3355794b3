package microsoft

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachemem "github.com/dropDatabas3/mailjohn/internal/cache/memory"
	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/store/memory"
)

type fixture struct {
	t      *testing.T
	store  *memory.Store
	states *oauth.StateStore
	a      *Adapter
	mux    *http.ServeMux
	calls  atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	return newFixtureOpts(t, Options{})
}

func newFixtureOpts(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{t: t, store: memory.New(), mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	f.states = oauth.NewStateStore(cachemem.New(oauth.NonceTTL), []byte("0123456789abcdef0123456789abcdef"))
	f.a = New(f.store, f.states, nil, opts)
	f.a.loginBase = srv.URL
	f.a.graphBase = srv.URL
	return f
}

func (f *fixture) seed(mut func(*repository.VendorEmailConfiguration)) *repository.VendorEmailConfiguration {
	f.t.Helper()
	cfg := &repository.VendorEmailConfiguration{
		VendorID:     7,
		LocationID:   3,
		Provider:     types.ProviderMicrosoft,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TenantID:     "contoso",
		RedirectURI:  "https://app.example.com/oauth/callback",
	}
	if mut != nil {
		mut(cfg)
	}
	require.NoError(f.t, f.store.Create(context.Background(), cfg))
	return cfg
}

func withTokens(access, refresh string, ttl time.Duration) func(*repository.VendorEmailConfiguration) {
	return func(cfg *repository.VendorEmailConfiguration) {
		if access != "" {
			cfg.AccessToken = &access
		}
		if refresh != "" {
			cfg.RefreshToken = &refresh
		}
		exp := time.Now().Add(ttl)
		cfg.ExpiresAt = &exp
		cfg.ExpiresIn = int(ttl / time.Second)
	}
}

// mintState issues a nonce against the fixture's state store, the same
// way GetAuthorizationURL would.
func (f *fixture) mintState(configID string) string {
	f.t.Helper()
	nonce, err := f.states.IssueNonce(configID)
	require.NoError(f.t, err)
	state, err := oauth.EncodeState(configID, nonce)
	require.NoError(f.t, err)
	return state
}

func textMessage() *types.EmailMessage {
	return &types.EmailMessage{
		To:      "dest@example.com",
		Subject: "Order update",
		Content: "Your order has shipped.",
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestStoreConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.a.StoreConfiguration(ctx, oauth.ConfigurationInput{
		VendorID:     7,
		LocationID:   3,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TenantID:     "contoso",
		RedirectURI:  "https://app.example.com/oauth/callback",
	})
	require.NoError(t, err)
	require.Equal(t, types.ProviderMicrosoft, cfg.Provider)
	require.Equal(t, "contoso", cfg.TenantID)
	require.Equal(t, "contoso", cfg.TenantOrCommon())
	require.False(t, cfg.HasAccessToken())

	noTenant, err := f.a.StoreConfiguration(ctx, oauth.ConfigurationInput{
		VendorID:     8,
		LocationID:   1,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/oauth/callback",
	})
	require.NoError(t, err)
	require.Equal(t, "common", noTenant.TenantOrCommon())
	require.Equal(t, int64(0), f.calls.Load())
}

func TestGetAuthorizationURL_TenantInPath(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)
	// Production bases so the URL shape is the real one.
	f.a.loginBase = defaultLoginBase

	got, err := f.a.GetAuthorizationURL(context.Background(), cfg.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "https://login.microsoftonline.com/contoso/oauth2/v2.0/authorize?"))

	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, cfg.RedirectURI, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "query", q.Get("response_mode"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "offline_access User.Read Mail.Send", q.Get("scope"))

	st, err := oauth.DecodeState(q.Get("state"))
	require.NoError(t, err)
	require.Equal(t, cfg.ID, st.ConfigID)
	require.NotEmpty(t, st.Nonce)
	require.Equal(t, 2, strings.Count(st.Nonce, "."), "el nonce debe ser un JWT")

	require.Equal(t, int64(0), f.calls.Load())
}

func TestGetAuthorizationURL_DefaultTenant(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(func(c *repository.VendorEmailConfiguration) { c.TenantID = "" })
	f.a.loginBase = defaultLoginBase

	got, err := f.a.GetAuthorizationURL(context.Background(), cfg.ID)
	require.NoError(t, err)
	require.Contains(t, got, "/common/oauth2/v2.0/authorize?")
}

func TestHandleAuthorizationCallback_EmptyCode(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)
	state := f.mintState(cfg.ID)

	_, err := f.a.HandleAuthorizationCallback(context.Background(), "  ", state)
	require.Equal(t, apperrors.CodeInvalidAuthorizationCode, apperrors.CodeOf(err))
	require.Equal(t, int64(0), f.calls.Load())
}

func TestHandleAuthorizationCallback_Success(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)
	state := f.mintState(cfg.ID)

	var gotForm url.Values
	f.mux.HandleFunc("/contoso/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		writeJSON(w, http.StatusOK, `{
			"token_type": "Bearer",
			"scope": "offline_access User.Read Mail.Send",
			"expires_in": 3600,
			"access_token": "eyJ.access",
			"refresh_token": "0.refresh"
		}`)
	})
	f.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer eyJ.access", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"displayName":"Ada","mail":"ada@contoso.com","userPrincipalName":"ada@contoso.onmicrosoft.com"}`)
	})

	td, err := f.a.HandleAuthorizationCallback(context.Background(), "auth-code", state)
	require.NoError(t, err)
	require.Equal(t, "eyJ.access", td.AccessToken)
	require.Equal(t, "0.refresh", td.RefreshToken)
	require.Equal(t, 3600, td.ExpiresIn)
	require.Equal(t, "ada@contoso.com", td.UserInfo["mail"])

	require.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	require.Equal(t, "auth-code", gotForm.Get("code"))
	// Microsoft exige repetir el scope en el intercambio.
	require.Equal(t, "offline_access User.Read Mail.Send", gotForm.Get("scope"))
	require.Equal(t, cfg.RedirectURI, gotForm.Get("redirect_uri"))

	require.Equal(t, int64(2), f.calls.Load())
}

func TestHandleAuthorizationCallback_ReplayedState(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)
	state := f.mintState(cfg.ID)

	f.mux.HandleFunc("/contoso/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"eyJ.access","refresh_token":"0.refresh","expires_in":3600}`)
	})
	f.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"mail":"ada@contoso.com"}`)
	})

	_, err := f.a.HandleAuthorizationCallback(context.Background(), "auth-code", state)
	require.NoError(t, err)
	after := f.calls.Load()

	// El nonce se quema en el primer uso. El replay muere antes de la red.
	_, err = f.a.HandleAuthorizationCallback(context.Background(), "auth-code", state)
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.KindOAuth))
	require.Equal(t, after, f.calls.Load())
}

func TestHandleAuthorizationCallback_MissingNonce(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)
	state, err := oauth.EncodeState(cfg.ID, "")
	require.NoError(t, err)

	_, err = f.a.HandleAuthorizationCallback(context.Background(), "auth-code", state)
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.KindOAuth))
	require.Equal(t, int64(0), f.calls.Load())
}

func TestHandleAuthorizationCallback_ProviderRejectsCode(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)
	state := f.mintState(cfg.ID)

	f.mux.HandleFunc("/contoso/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"AADSTS70008: The provided authorization code or refresh token has expired."}`)
	})

	_, err := f.a.HandleAuthorizationCallback(context.Background(), "expired-code", state)
	require.Equal(t, apperrors.CodeTokenExchangeFailed, apperrors.CodeOf(err))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Contains(t, appErr.Detail, "AADSTS70008")
}

func TestUserEmailFrom(t *testing.T) {
	cases := []struct {
		name string
		info map[string]any
		want string
	}{
		{"mail preferido", map[string]any{"mail": "ada@contoso.com", "userPrincipalName": "ada@contoso.onmicrosoft.com"}, "ada@contoso.com"},
		{"fallback a upn", map[string]any{"userPrincipalName": "ada@contoso.onmicrosoft.com"}, "ada@contoso.onmicrosoft.com"},
		{"mail en null", map[string]any{"mail": nil, "userPrincipalName": "ada@contoso.onmicrosoft.com"}, "ada@contoso.onmicrosoft.com"},
		{"sin perfil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, userEmailFrom(tc.info))
		})
	}
}

func TestStoreToken_UserEmailFallback(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)

	updated, err := f.a.StoreToken(context.Background(), cfg, &types.TokenData{
		AccessToken: "eyJ.access",
		ExpiresIn:   3600,
		UserInfo:    map[string]any{"mail": nil, "userPrincipalName": "ada@contoso.onmicrosoft.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.UserEmail)
	require.Equal(t, "ada@contoso.onmicrosoft.com", *updated.UserEmail)
}

func TestSendEmail_GraphPayload(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("graph-token", "0.refresh", time.Hour))

	attContent := base64.StdEncoding.EncodeToString([]byte("sku,qty\nA-1,2\n"))
	var gotAuth string
	var gotBody []byte
	f.mux.HandleFunc("/me/sendMail", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})

	msg := &types.EmailMessage{
		To:          "dest@example.com",
		Cc:          []string{"copy@example.com"},
		Bcc:         []string{"hidden@example.com"},
		Subject:     "Quarterly report",
		ContentType: types.ContentTypeHTML,
		Content:     "<p>Attached.</p>",
		Attachments: []types.Attachment{{Filename: "report.csv", MimeType: "text/csv", Content: attContent}},
	}
	ok, err := f.a.SendEmail(context.Background(), cfg, msg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bearer graph-token", gotAuth)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, true, payload["saveToSentItems"])

	message := payload["message"].(map[string]any)
	require.Equal(t, "Quarterly report", message["subject"])

	body := message["body"].(map[string]any)
	require.Equal(t, "HTML", body["contentType"])
	require.Equal(t, "<p>Attached.</p>", body["content"])

	to := message["toRecipients"].([]any)
	require.Len(t, to, 1)
	addr := to[0].(map[string]any)["emailAddress"].(map[string]any)["address"]
	require.Equal(t, "dest@example.com", addr)
	require.Len(t, message["ccRecipients"].([]any), 1)
	require.Len(t, message["bccRecipients"].([]any), 1)

	atts := message["attachments"].([]any)
	require.Len(t, atts, 1)
	att := atts[0].(map[string]any)
	require.Equal(t, "#microsoft.graph.fileAttachment", att["@odata.type"])
	require.Equal(t, "report.csv", att["name"])
	require.Equal(t, "text/csv", att["contentType"])
	require.Equal(t, attContent, att["contentBytes"])
}

func TestSendEmail_TextBodyByDefault(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("graph-token", "0.refresh", time.Hour))

	var gotBody []byte
	f.mux.HandleFunc("/me/sendMail", func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})

	ok, err := f.a.SendEmail(context.Background(), cfg, textMessage())
	require.NoError(t, err)
	require.True(t, ok)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	body := payload["message"].(map[string]any)["body"].(map[string]any)
	require.Equal(t, "Text", body["contentType"])
}

func TestSendEmail_SizeLimit(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("graph-token", "0.refresh", time.Hour))

	big := make([]byte, maxMessageBytes+1)
	msg := textMessage()
	msg.Attachments = []types.Attachment{{
		Filename: "huge.bin",
		MimeType: "application/octet-stream",
		Content:  base64.StdEncoding.EncodeToString(big),
	}}

	ok, err := f.a.SendEmail(context.Background(), cfg, msg)
	require.False(t, ok)
	require.Equal(t, apperrors.CodeSizeLimitExceeded, apperrors.CodeOf(err))
	require.Equal(t, int64(0), f.calls.Load())
}

func TestSendEmail_RefreshesExpiredTokenOnce(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("stale-token", "refresh-1", time.Minute))
	ctx := context.Background()

	var tokenCalls atomic.Int64
	f.mux.HandleFunc("/contoso/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		_ = r.ParseForm()
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		writeJSON(w, http.StatusOK, `{"access_token":"fresh-token","refresh_token":"refresh-2","expires_in":3600}`)
	})
	var gotAuth string
	f.mux.HandleFunc("/me/sendMail", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	})

	ok, err := f.a.SendEmail(ctx, cfg, textMessage())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), tokenCalls.Load())
	require.Equal(t, "Bearer fresh-token", gotAuth)

	// Microsoft rota el refresh token: la rotación debe quedar persistida.
	stored, err := f.store.GetByID(ctx, cfg.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", *stored.AccessToken)
	require.Equal(t, "refresh-2", *stored.RefreshToken)
}

func TestSendEmail_FreshTokenSkipsRefresh(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("graph-token", "0.refresh", time.Hour))

	var tokenHit atomic.Bool
	f.mux.HandleFunc("/contoso/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		tokenHit.Store(true)
		writeJSON(w, http.StatusInternalServerError, `{"error":"unexpected"}`)
	})
	f.mux.HandleFunc("/me/sendMail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	ok, err := f.a.SendEmail(context.Background(), cfg, textMessage())
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, tokenHit.Load())
}

func TestRefreshToken_RetainsRefreshTokenWhenOmitted(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("stale-token", "keep-me", -time.Minute))
	ctx := context.Background()

	f.mux.HandleFunc("/contoso/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"fresh-token","expires_in":3600}`)
	})

	updated, err := f.a.RefreshToken(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", *updated.AccessToken)
	require.NotNil(t, updated.RefreshToken)
	require.Equal(t, "keep-me", *updated.RefreshToken)
}

func TestRefreshToken_WithoutStoredRefresh(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("stale-token", "", -time.Minute))

	_, err := f.a.RefreshToken(context.Background(), cfg)
	require.Equal(t, apperrors.CodeNoRefreshToken, apperrors.CodeOf(err))
	require.Equal(t, int64(0), f.calls.Load())
}

func TestValidateToken(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good-token" {
			writeJSON(w, http.StatusOK, `{"mail":"ada@contoso.com"}`)
			return
		}
		writeJSON(w, http.StatusUnauthorized, `{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`)
	})
	ctx := context.Background()

	require.True(t, f.a.ValidateToken(ctx, "good-token"))
	require.False(t, f.a.ValidateToken(ctx, "expired-token"))
	require.False(t, f.a.ValidateToken(ctx, ""))
}

func TestGetUserInfo_RawPassthrough(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"@odata.context": "https://graph.microsoft.com/v1.0/$metadata#users/$entity",
			"displayName": "Ada Lovelace",
			"mail": "ada@contoso.com",
			"userPrincipalName": "ada@contoso.onmicrosoft.com"
		}`)
	})

	info, err := f.a.GetUserInfo(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, info, 4)
	require.Contains(t, info, "@odata.context")
	require.Equal(t, "Ada Lovelace", info["displayName"])
	require.Equal(t, "ada@contoso.com", info["mail"])
}

func TestRevokeToken_LocalOnly(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(withTokens("live-token", "0.refresh", time.Hour))
	ctx := context.Background()

	// Sin red: la revocación simulada no depende del proveedor.
	f.a.loginBase = "http://127.0.0.1:1"
	f.a.graphBase = "http://127.0.0.1:1"

	ok, err := f.a.RevokeToken(ctx, cfg)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := f.store.GetByID(ctx, cfg.ID)
	require.NoError(t, err)
	require.False(t, stored.HasAccessToken())
	require.False(t, stored.HasRefreshToken())
	require.Nil(t, stored.ExpiresAt)
	require.Zero(t, stored.ExpiresIn)
	require.Equal(t, int64(0), f.calls.Load())
}

func TestRevokeToken_WithoutTokens(t *testing.T) {
	f := newFixture(t)
	cfg := f.seed(nil)

	ok, err := f.a.RevokeToken(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), f.calls.Load())
}

// Package outlook implements the provider adapter for Microsoft Outlook /
// Office 365 via the official Microsoft Graph SDK.
package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/skedtool/sked/internal/core"
)

// Adapter talks to Microsoft Graph. It is stateless across accounts:
// credentials arrive per call and a fresh Graph client is built from them.
type Adapter struct{}

// New creates the adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() core.ProviderKind { return core.ProviderOutlook }

// OAuthConfig returns the OAuth2 configuration for the Microsoft identity
// platform, shared with the auth command's browser flow.
func OAuthConfig(clientID, tenantID, redirectURL string) *oauth2.Config {
	if tenantID == "" {
		tenantID = "common"
	}
	return &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    microsoft.AzureADEndpoint(tenantID),
		RedirectURL: redirectURL,
		Scopes: []string{
			"https://graph.microsoft.com/Calendars.ReadWrite",
			"https://graph.microsoft.com/User.Read",
			"offline_access",
		},
	}
}

// tokenCredential bridges a saved OAuth2 token into the Azure SDK's
// TokenCredential interface, refreshing and re-persisting it when expired.
type tokenCredential struct {
	config    *oauth2.Config
	tokenFile string

	mu    sync.Mutex
	token *oauth2.Token
}

func (c *tokenCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.token.Valid() {
		src := c.config.TokenSource(ctx, c.token)
		newTok, err := src.Token()
		if err != nil {
			return azcore.AccessToken{}, fmt.Errorf("token expired and refresh failed (delete %s and run 'sked auth'): %w", c.tokenFile, err)
		}
		c.token = newTok

		// Persist the refreshed token so the next process skips the refresh
		if f, err := os.Create(c.tokenFile); err == nil {
			json.NewEncoder(f).Encode(newTok)
			f.Close()
		}
	}

	return azcore.AccessToken{
		Token:     c.token.AccessToken,
		ExpiresOn: c.token.Expiry,
	}, nil
}

// client builds a Graph client from the credential bundle.
func (a *Adapter) client(creds core.Credentials) (*msgraphsdk.GraphServiceClient, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id missing for outlook account", core.ErrInvalidCredentials)
	}
	tok, err := tokenFromFile(creds.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file (run 'sked auth' first): %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token file has no access token — delete %s and run 'sked auth' again", creds.TokenFile)
	}

	cred := &tokenCredential{
		config:    OAuthConfig(creds.ClientID, creds.TenantID, ""),
		tokenFile: creds.TokenFile,
		token:     tok,
	}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{
		"https://graph.microsoft.com/.default",
	})
	if err != nil {
		return nil, fmt.Errorf("create graph client: %w", err)
	}
	return client, nil
}

// ValidateCredentials lists the user's calendars, which exercises the
// token end to end.
func (a *Adapter) ValidateCredentials(ctx context.Context, creds core.Credentials) error {
	client, err := a.client(creds)
	if err != nil {
		return err
	}
	if _, err := client.Me().Calendars().Get(ctx, nil); err != nil {
		return fmt.Errorf("list calendars: %w", err)
	}
	return nil
}

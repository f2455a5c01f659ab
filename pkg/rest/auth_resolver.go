package rest

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"

	resourcev1alpha1 "github.com/konnektr-io/rest-resource/api/v1alpha1"
)

// ResolvedAuthConfig holds the resolved authentication configuration
type ResolvedAuthConfig struct {
	AuthType   string
	AuthConfig map[string]string
}

// AuthResolver handles resolving authentication configuration from the
// environment and the filesystem.
type AuthResolver struct {
	LookupEnv func(key string) (string, bool)
	ReadFile  func(name string) ([]byte, error)
	Log       logr.Logger
}

// NewAuthResolver creates an AuthResolver reading the process environment.
func NewAuthResolver(log logr.Logger) *AuthResolver {
	return &AuthResolver{
		LookupEnv: os.LookupEnv,
		ReadFile:  os.ReadFile,
		Log:       log,
	}
}

// ResolveAuthenticationConfig resolves authentication credentials referenced by authRef.
func (ar *AuthResolver) ResolveAuthenticationConfig(authRef *resourcev1alpha1.HTTPAuthenticationRef) (*ResolvedAuthConfig, error) {
	if authRef == nil {
		return nil, nil
	}
	log := ar.Log.WithValues("authType", authRef.Type)

	getEnv := func(specifiedKey, defaultKey string) string {
		key := specifiedKey
		if key == "" {
			key = defaultKey
		}
		if key == "" {
			return ""
		}
		value, _ := ar.LookupEnv(key)
		return value
	}

	authConfig := &ResolvedAuthConfig{
		AuthType:   authRef.Type,
		AuthConfig: make(map[string]string),
	}

	switch authRef.Type {
	case "basic":
		username := getEnv(authRef.UsernameEnv, "HTTP_USERNAME")
		password := getEnv(authRef.PasswordEnv, "HTTP_PASSWORD")
		authConfig.AuthConfig["username"] = username
		authConfig.AuthConfig["password"] = password

		if username == "" && password == "" {
			log.Info("Warning: Basic auth configured but no credentials found in environment")
		}

	case "bearer":
		token := getEnv(authRef.TokenEnv, "")
		if token == "" && authRef.TokenFile != "" {
			data, err := ar.ReadFile(authRef.TokenFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read token file '%s': %w", authRef.TokenFile, err)
			}
			token = strings.TrimSpace(string(data))
		}
		authConfig.AuthConfig["token"] = token

		if token == "" {
			log.Info("Warning: Bearer auth configured but no token found")
		}

	case "apikey":
		apiKey := getEnv(authRef.APIKeyEnv, "HTTP_API_KEY")
		header := authRef.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		authConfig.AuthConfig["apikey"] = apiKey
		authConfig.AuthConfig["header"] = header

		if apiKey == "" {
			log.Info("Warning: API key auth configured but no API key found in environment")
		}

	case "oauth2":
		clientID := getEnv(authRef.ClientIDEnv, "OAUTH2_CLIENT_ID")
		clientSecret := getEnv(authRef.ClientSecretEnv, "OAUTH2_CLIENT_SECRET")

		authConfig.AuthConfig["clientId"] = clientID
		authConfig.AuthConfig["clientSecret"] = clientSecret
		authConfig.AuthConfig["tokenUrl"] = authRef.TokenURL
		authConfig.AuthConfig["scopes"] = authRef.Scopes

		if clientID == "" || clientSecret == "" || authRef.TokenURL == "" {
			return nil, fmt.Errorf("OAuth2 authentication requires clientId, clientSecret in environment and tokenUrl in spec")
		}

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", authRef.Type)
	}

	log.V(1).Info("Successfully resolved authentication configuration")
	return authConfig, nil
}

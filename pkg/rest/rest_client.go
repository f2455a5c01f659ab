// Package rest performs the HTTP exchanges issued by resource actions: request
// building, authentication, URL templating and body decoding.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/clientcredentials"
)

// RESTClient implements Transport on top of net/http.
type RESTClient struct {
	client *http.Client
	jar    http.CookieJar
}

// NewRESTClient creates a new REST client. Requests are not bounded by a
// client timeout; callers bound them through the request context.
func NewRESTClient() *RESTClient {
	jar, _ := cookiejar.New(nil)
	return &RESTClient{
		client: &http.Client{},
		jar:    jar,
	}
}

// NewRESTClientWithHTTPClient wraps an existing http.Client. The client's own
// cookie jar, if any, is ignored in favor of the credentials policy.
func NewRESTClientWithHTTPClient(c *http.Client) *RESTClient {
	jar, _ := cookiejar.New(nil)
	clone := *c
	clone.Jar = nil
	return &RESTClient{client: &clone, jar: jar}
}

// Do performs an HTTP request and returns the response whatever its status code.
func (r *RESTClient) Do(ctx context.Context, config HTTPConfig) (*HTTPResponse, error) {
	req, err := r.buildRequest(ctx, config)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("failed to build request: %w", err)}
	}

	sendCookies := withCredentials(config.Credentials)
	if sendCookies {
		for _, c := range r.jar.Cookies(req.URL) {
			req.AddCookie(c)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if sendCookies {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			r.jar.SetCookies(req.URL, cookies)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// RequestError reports a request that could not be built and was never sent.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func withCredentials(policy string) bool {
	switch strings.ToLower(policy) {
	case CredentialsInclude, CredentialsSameOrigin:
		return true
	default:
		return false
	}
}

// buildRequest constructs an HTTP request with authentication.
func (r *RESTClient) buildRequest(ctx context.Context, config HTTPConfig) (*http.Request, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("empty request URL")
	}
	method := config.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(config.Body) > 0 {
		bodyReader = bytes.NewReader(config.Body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), config.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	// sorted so that keys differing only in case fold the same way every time
	for _, key := range slices.Sorted(maps.Keys(config.Headers)) {
		req.Header.Set(key, config.Headers[key])
	}

	if len(config.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	err = r.addAuthentication(req, config.AuthType, config.AuthConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to add authentication: %w", err)
	}

	return req, nil
}

// addAuthentication adds authentication to the request.
func (r *RESTClient) addAuthentication(req *http.Request, authType string, authConfig map[string]string) error {
	switch strings.ToLower(authType) {
	case "basic":
		username := authConfig["username"]
		password := authConfig["password"]
		if username != "" || password != "" {
			req.SetBasicAuth(username, password)
		}
	case "bearer":
		token := authConfig["token"]
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case "apikey":
		apiKey := authConfig["apikey"]
		header := authConfig["header"]
		if header == "" {
			header = "X-API-Key"
		}
		if apiKey != "" {
			req.Header.Set(header, apiKey)
		}
	case "oauth2":
		token, err := r.getOAuth2Token(req.Context(), authConfig)
		if err != nil {
			return fmt.Errorf("failed to get OAuth2 token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case "":
		// No authentication
	default:
		return fmt.Errorf("unsupported authentication type: %s", authType)
	}
	return nil
}

// getOAuth2Token performs OAuth2 client credentials flow to get an access token.
func (r *RESTClient) getOAuth2Token(ctx context.Context, authConfig map[string]string) (string, error) {
	clientID := authConfig["clientId"]
	clientSecret := authConfig["clientSecret"]
	tokenURL := authConfig["tokenUrl"]
	scopes := authConfig["scopes"]

	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return "", fmt.Errorf("OAuth2 requires clientId, clientSecret, and tokenUrl")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	if scopes != "" {
		config.Scopes = strings.Fields(scopes)
	}

	token, err := config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve OAuth2 token: %w", err)
	}

	return token.AccessToken, nil
}

// IsJSON reports whether the response declares a JSON content type.
func (resp *HTTPResponse) IsJSON() bool {
	if resp == nil || resp.Header == nil {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// DecodeBody parses the response payload: JSON bodies are unmarshalled (and
// narrowed with the gjson responsePath when set), other bodies are returned as
// text. An empty body decodes to nil.
func DecodeBody(resp *HTTPResponse, responsePath string) (any, error) {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	if !resp.IsJSON() {
		return string(resp.Body), nil
	}

	if responsePath == "" || responsePath == "$" {
		var body any
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		return body, nil
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("failed to parse JSON response: invalid JSON")
	}
	result := gjson.GetBytes(resp.Body, strings.TrimPrefix(responsePath, "$."))
	if !result.Exists() {
		return nil, fmt.Errorf("response path '%s' not found in response", responsePath)
	}
	return result.Value(), nil
}

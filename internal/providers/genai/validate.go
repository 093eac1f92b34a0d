package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"oracle/internal/domain"
)

// ValidateKey checks a candidate key with one lightweight generation call.
// It does not read or modify the credential store.
func ValidateKey(ctx context.Context, baseURL string, httpClient *http.Client, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key cannot be empty")
	}
	probe, err := NewClient(Options{
		BaseURL:     baseURL,
		Model:       DefaultModel,
		Credentials: StaticKey(key),
		HTTPClient:  httpClient,
	})
	if err != nil {
		return err
	}
	var response geminiGenerateContentResponse
	payload, err := encodeRequest(TextRequest("", "Hello"))
	if err != nil {
		return err
	}
	if err := probe.invoke(ctx, http.MethodPost, "/models/"+DefaultModel+":generateContent", nil, payload, &response); err != nil {
		return err
	}
	if len(response.Candidates) == 0 {
		return fmt.Errorf("key accepted but returned no content: %w", domain.ErrMalformedResponse)
	}
	return nil
}

package analyze

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// azureCredential supplies the Entra ID credential used when no API key
// is configured.
var azureCredential = func() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}

// newAzure targets an Azure OpenAI deployment. The deployment name travels
// as the request model, which the azure middleware maps onto the path.
func newAzure(cfg *Config, logger *slog.Logger) (*chatClient, error) {
	opts := []option.RequestOption{
		azure.WithEndpoint(strings.TrimRight(cfg.Azure.Endpoint, "/"), cfg.Azure.APIVersion),
	}

	if key := cfg.Azure.APIKey; key != "" {
		opts = append(opts, azure.WithAPIKey(key))
	} else {
		cred, err := azureCredential()
		if err != nil {
			return nil, fmt.Errorf("create azure credential: %w", err)
		}
		opts = append(opts, azure.WithTokenCredential(cred))
	}

	return &chatClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Azure.Deployment,
		temperature: cfg.TemperatureValue(),
		maxChars:    cfg.MaxTextChars,
		logger:      logger,
		ready:       func() error { return nil },
	}, nil
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/relprobe/relprobe/internal/lm/remote"
	"github.com/relprobe/relprobe/internal/logger"
)

// dialClient connects to the model server named by the flags. The client
// serves as both tokenizer and model for everything downstream.
func dialClient(ctx context.Context, log logger.Logger) (*remote.Client, error) {
	server := strings.TrimSpace(serverURL)
	if server == "" {
		return nil, fmt.Errorf("a model server is required: set --server, %s, or server in %s", envServer, configPath())
	}
	return remote.Dial(ctx, server, remote.Options{
		Model:             modelName,
		APIKey:            apiKey,
		MaxLength:         int(maxLength),
		RequestsPerSecond: rps,
		Logger:            log,
	})
}

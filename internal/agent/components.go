package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/wwwzy/SQLChatAgent/internal/config"
)

// NewChatModel 初始化 Ark ChatModel
func NewChatModel(ctx context.Context, arkConfig config.ArkConfig) (model.ToolCallingChatModel, error) {
	if arkConfig.APIKey == "" || arkConfig.ModelID == "" {
		return nil, fmt.Errorf("ARK_API_KEY, ARK_MODEL_ID must be set")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:  arkConfig.APIKey,
		Model:   arkConfig.ModelID,
		BaseURL: arkConfig.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init ark chat model failed: %w", err)
	}
	return chatModel, nil
}

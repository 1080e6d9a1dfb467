package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guildbot/internal/command"
	"guildbot/internal/gateway"
)

const (
	levelPattern  = `[!|！]查詢等級`
	aiPattern     = `^[!！](?i:ai|問)(?:\s+([\s\S]*))?$`
	visionPattern = `^[!！](?i:識圖|vision)(?:\s+(\S+))?\s*$`

	aiUsage        = "用法：!ai <訊息>"
	visionUsage    = "用法：!識圖 <圖片網址>，或附上一張圖片"
	visionDisabled = "識圖功能未啟用"
)

// registerCommands registers the anchored commands first: the level query
// matches anywhere in a message and must not capture "!ai ...查詢等級".
func (b *Bot) registerCommands() error {
	if err := b.commands.Register("ai", aiPattern, b.aiCommand, command.Acknowledge()); err != nil {
		return err
	}
	if err := b.commands.Register("vision", visionPattern, b.visionCommand, command.Acknowledge()); err != nil {
		return err
	}
	return b.commands.Register("level", levelPattern, b.levelCommand)
}

// levelCommand reports the sender's level; unknown users are level 0.
func (b *Bot) levelCommand(_ context.Context, req command.Request) (*command.Result, error) {
	lvl, _ := b.deps.Tracker.Level(req.SenderID)
	return &command.Result{Reply: fmt.Sprintf("%s 您現在 %d 等了！", req.Mention, lvl)}, nil
}

// aiCommand forwards the text and image attachments to the gateway. A
// gateway failure is shown to the user as is.
func (b *Bot) aiCommand(ctx context.Context, req command.Request) (*command.Result, error) {
	text := ""
	if len(req.Args) > 1 {
		text = strings.TrimSpace(req.Args[1])
	}
	if text == "" && len(req.Images) == 0 {
		return &command.Result{Reply: aiUsage}, nil
	}

	reply, err := b.deps.Gateway.Chat(ctx, gateway.ChatRequest{
		CallerID:     req.SenderID,
		Text:         text,
		Images:       req.Images,
		SystemPrompt: b.current().systemPrompt,
	})
	if err != nil {
		var failure *gateway.Failure
		if errors.As(err, &failure) {
			return &command.Result{Reply: failure.Error()}, nil
		}
		return nil, err
	}
	return &command.Result{Reply: reply}, nil
}

// visionCommand describes the given URL or the first attached image.
func (b *Bot) visionCommand(ctx context.Context, req command.Request) (*command.Result, error) {
	if b.deps.Vision == nil {
		return &command.Result{Reply: visionDisabled}, nil
	}

	target := ""
	if len(req.Args) > 1 {
		target = strings.Trim(req.Args[1], "<>")
	}
	if target == "" && len(req.Images) > 0 {
		target = req.Images[0]
	}
	if target == "" {
		return &command.Result{Reply: visionUsage}, nil
	}

	out, err := b.deps.Vision.Describe(ctx, target)
	if err != nil {
		b.logger.Warn().Err(err).Str("url", target).Msg("vision failed")
		return &command.Result{Reply: "識圖失敗：" + err.Error()}, nil
	}
	if out == "" {
		out = "未能識別到物體"
	}
	return &command.Result{Reply: out}, nil
}

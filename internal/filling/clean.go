package filling

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	reasoningBlock = regexp.MustCompile(`(?is)<\|start_header_id\|>reasoning<\|end_header_id\|>(.*?)<\|end_of_turn\|>`)
	headerToken    = regexp.MustCompile(`(?i)<\|start_header_id\|>.*?<\|end_header_id\|>`)
	endOfTurnToken = regexp.MustCompile(`(?i)<\|end_of_turn\|>`)
)

// CleanAnswer removes reasoning segments and leftover chat-template tokens
// from a model answer. Removed reasoning is logged at debug level.
func CleanAnswer(raw string, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, m := range reasoningBlock.FindAllStringSubmatch(raw, -1) {
		logger.Debug("model reasoning dropped", zap.String("reasoning", strings.TrimSpace(m[1])))
	}

	out := reasoningBlock.ReplaceAllString(raw, "")
	out = headerToken.ReplaceAllString(out, "")
	out = endOfTurnToken.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

package flow

import (
	"strings"
)

const toolArgumentsLogLimit = 1024

func formatToolArgumentsForLog(raw string) string {
	argStr := strings.TrimSpace(raw)
	if len(argStr) > toolArgumentsLogLimit {
		return argStr[:toolArgumentsLogLimit] + "...(truncated)"
	}
	return argStr
}

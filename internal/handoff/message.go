package handoff

import (
	"fmt"
	"strings"
)

// Message renders the instructional block printed when a session crosses
// its threshold. The assistant reads it as extra prompt context.
func Message(b Budget) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<context-handoff>\n")
	fmt.Fprintf(&sb, "Context window is at %d%% (%d of %d tokens), above the %d%% handoff threshold.\n",
		b.Percent, b.Tokens, b.Window, b.Threshold)
	sb.WriteString(handoffSteps)
	sb.WriteString("</context-handoff>\n")
	return sb.String()
}

// ManualMessage renders the block for an operator-requested handoff.
func ManualMessage() string {
	var sb strings.Builder
	sb.WriteString("<context-handoff>\n")
	sb.WriteString("The operator requested a context handoff.\n")
	sb.WriteString(handoffSteps)
	sb.WriteString("</context-handoff>\n")
	return sb.String()
}

const handoffSteps = `Before doing anything else:
1. Finish or checkpoint the current step; do not start new work.
2. Write a handoff summary: the goal, what is done, what remains, open
   questions, and the files touched.
3. Tell the user the summary is ready and that they should run /clear
   (or start a new session) and paste it to continue.
`

package report

import (
	"fmt"
	"strings"

	"github.com/user/gwdns/internal/model"
)

// GenerateHealthTimeline creates a Mermaid flowchart showing one gateway's
// health transitions over the report window. Transitions are expected
// newest-first, as returned by storage.
func GenerateHealthTimeline(gateway string, transitions []model.TransitionRecord) string {
	if len(transitions) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s Timeline\n\n", gateway))
	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")

	// Oldest transition first, and its prior state as the starting node.
	oldest := transitions[len(transitions)-1]
	sb.WriteString(fmt.Sprintf("    S0[%s]:::%s\n", oldest.PrevState, stateClass(oldest.PrevState)))

	prevNode := "S0"
	for i := len(transitions) - 1; i >= 0; i-- {
		tr := transitions[i]
		nodeID := fmt.Sprintf("S%d", len(transitions)-i)
		label := fmt.Sprintf("%s\\n%s", tr.NewState, tr.Timestamp.Format("15:04:05"))
		sb.WriteString(fmt.Sprintf("    %s[%s]:::%s\n", nodeID, label, stateClass(tr.NewState)))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", prevNode, nodeID))
		prevNode = nodeID
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef online fill:#90EE90,stroke:#228B22\n")
	sb.WriteString("    classDef warning fill:#FFE4B5,stroke:#FF8C00\n")
	sb.WriteString("    classDef down fill:#FFB6C1,stroke:#FF0000\n")
	sb.WriteString("    classDef unknown fill:#D3D3D3,stroke:#808080\n")
	sb.WriteString("```\n")

	return sb.String()
}

func stateClass(s model.HealthState) string {
	switch s {
	case model.HealthOnline, model.HealthWarning, model.HealthDown:
		return string(s)
	default:
		return "unknown"
	}
}

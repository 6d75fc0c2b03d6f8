package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteRun marks an assembly attempt on a run that did not succeed.
var ErrIncompleteRun = errors.New("incomplete run")

// Assemble produces the final report from a succeeded run: the terminal
// task's text, or the concatenation of all terminal task texts in declared
// order joined by separator.
func Assemble(graph *Graph, run *Run, separator string) (string, error) {
	if run.State != RunSucceeded {
		return "", fmt.Errorf("%w: run state is %s", ErrIncompleteRun, run.State)
	}

	terminals := graph.Terminals()
	texts := make([]string, 0, len(terminals))
	for _, id := range terminals {
		result, ok := run.Results[id]
		if !ok || result.Status != TaskSucceeded {
			return "", fmt.Errorf("%w: terminal task %q has no result", ErrIncompleteRun, id)
		}
		texts = append(texts, result.Text)
	}

	return strings.Join(texts, separator), nil
}

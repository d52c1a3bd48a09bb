package stepper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"

	"github.com/spigell/cv-coach/internal/session"
)

const (
	PromptBack = "<- previous question"
	PromptQuit = "Save and quit"
)

// PromptChooser renders steps as interactive terminal selects.
type PromptChooser struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func (p *PromptChooser) Choose(_ context.Context, v View) (Decision, error) {
	items := make([]string, 0, len(v.Step.Choices)+2)
	cursor := 0
	for idx, c := range v.Step.Choices {
		items = append(items, fmt.Sprintf("%s) %s", c.Label, c.Text))
		if c.Label == v.Step.Answer {
			cursor = idx
		}
	}

	if v.CanGoBack {
		items = append(items, PromptBack)
	}
	items = append(items, PromptQuit)

	label := fmt.Sprintf("[%d/%d] %s", v.Index+1, v.Total, v.Step.Prompt)
	if v.Last {
		label += " (last question)"
	}

	sel := promptui.Select{
		Label:     label,
		Items:     items,
		Size:      len(items),
		CursorPos: cursor,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}

	idx, selected, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return Decision{Action: ActionQuit}, nil
		}
		return Decision{}, err
	}

	return decide(v.Step.Choices, idx, selected), nil
}

func decide(choices []session.Choice, idx int, selected string) Decision {
	switch {
	case idx >= 0 && idx < len(choices):
		return Decision{Action: ActionAnswer, Choice: choices[idx].Label}
	case selected == PromptBack:
		return Decision{Action: ActionBack}
	default:
		return Decision{Action: ActionQuit}
	}
}

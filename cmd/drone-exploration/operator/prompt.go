package operator

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"golang.org/x/term"
)

// ActionKind is an operator verdict on an investigation
type ActionKind int

const (
	ActionAccept ActionKind = iota
	ActionDiscard
	ActionMove
	ActionSkip
)

// Action is what the operator chose for one investigation
type Action struct {
	Kind      ActionKind
	Direction core.Direction // ActionMove only
}

// Prompter asks the operator what to do with an investigation. Decide must
// return once ctx is done.
type Prompter interface {
	Decide(ctx context.Context, inv Investigation, latest core.Snapshot) (Action, error)
}

// IsInteractive reports whether stdin and stdout are both terminals
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

const (
	optionAccept  = "Accept target"
	optionDiscard = "Discard target"
	optionUp      = "Nudge up"
	optionDown    = "Nudge down"
	optionLeft    = "Nudge left"
	optionRight   = "Nudge right"
	optionSkip    = "Decide later"
)

var optionActions = map[string]Action{
	optionAccept:  {Kind: ActionAccept},
	optionDiscard: {Kind: ActionDiscard},
	optionUp:      {Kind: ActionMove, Direction: core.DirectionUp},
	optionDown:    {Kind: ActionMove, Direction: core.DirectionDown},
	optionLeft:    {Kind: ActionMove, Direction: core.DirectionLeft},
	optionRight:   {Kind: ActionMove, Direction: core.DirectionRight},
	optionSkip:    {Kind: ActionSkip},
}

// SurveyPrompter asks on the terminal with a survey select prompt. When View
// is set, the latest rendered view is printed before the question.
type SurveyPrompter struct {
	View io.Writer
}

// Decide implements Prompter. survey has no cancellation, so a prompt still
// open when ctx ends keeps reading stdin in the background until answered.
func (p *SurveyPrompter) Decide(ctx context.Context, inv Investigation, latest core.Snapshot) (Action, error) {
	if p.View != nil && len(latest.View) > 0 {
		fmt.Fprintf(p.View, "%s\n", latest.View)
	}

	prompt := &survey.Select{
		Message: fmt.Sprintf("Agent %d reports a target at %s (agent at %.1f, %.1f, tick %d):",
			inv.AgentID, inv.Target, inv.AgentPosition[0], inv.AgentPosition[1], inv.Tick),
		Options: []string{optionAccept, optionDiscard, optionUp, optionDown, optionLeft, optionRight, optionSkip},
		Default: optionAccept,
	}

	type answer struct {
		choice string
		err    error
	}
	answered := make(chan answer, 1)
	go func() {
		var choice string
		err := survey.AskOne(prompt, &choice)
		answered <- answer{choice: choice, err: err}
	}()

	var ans answer
	select {
	case <-ctx.Done():
		return Action{}, ctx.Err()
	case ans = <-answered:
	}
	if ans.err != nil {
		return Action{}, fmt.Errorf("failed to read decision: %w", ans.err)
	}

	action, ok := optionActions[ans.choice]
	if !ok {
		return Action{}, fmt.Errorf("unknown choice %q", ans.choice)
	}
	return action, nil
}

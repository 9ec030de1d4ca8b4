// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pass

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved tokens understood at the agent boundary and on the wire.
const (
	// ResetToken, as the first line of an action, abandons the
	// current pass list and restores the session's initial state.
	ResetToken = "another_try"

	// NoOpToken is accepted anywhere and ignored.
	NoOpToken = "none_pass"

	// LoopMarker prefixes wire tokens for passes that run inside a
	// loop region. Agents may also send it; it is stripped on decode.
	LoopMarker = ">"

	// LoopFixPass is expanded on the wire into the tokens that set up
	// the loop pipeline it depends on.
	LoopFixPass = "fix_loops"
)

// ErrUnknownAction is returned when an action names a pass the
// validator does not place in the session's category, or indexes
// outside the action space.
var ErrUnknownAction = errors.New("unknown action")

// Kind discriminates the variants of Action.
type Kind int

const (
	// KindApply appends Pass to the logical pass list.
	KindApply Kind = iota
	// KindReset restores the session's initial state.
	KindReset
	// KindNoOp changes nothing.
	KindNoOp
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindApply:
		return "apply"
	case KindReset:
		return "reset"
	case KindNoOp:
		return "noop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is one decoded agent intent. Pass is set only for KindApply.
type Action struct {
	Kind Kind
	Pass string
}

// Apply returns an Action that applies the named pass.
func Apply(name string) Action { return Action{Kind: KindApply, Pass: name} }

// Reset returns the reset Action.
func Reset() Action { return Action{Kind: KindReset} }

// NoOp returns the no-op Action.
func NoOp() Action { return Action{Kind: KindNoOp} }

func (a Action) String() string {
	if a.Kind == KindApply {
		return a.Pass
	}
	return a.Kind.String()
}

// Ref identifies an action the way the agent submitted it: by its
// textual form or by index into the action space in effect when the
// agent decided.
type Ref struct {
	name    string
	index   int
	byIndex bool
}

// ByName returns a Ref carrying the action text verbatim. The text may
// be a multi-line batch.
func ByName(text string) Ref { return Ref{name: text} }

// ByIndex returns a Ref to the index-th entry of an action space.
func ByIndex(index int) Ref { return Ref{index: index, byIndex: true} }

// IsIndex reports whether the Ref was built with ByIndex.
func (r Ref) IsIndex() bool { return r.byIndex }

func (r Ref) String() string {
	if r.byIndex {
		return fmt.Sprintf("#%d", r.index)
	}
	return fmt.Sprintf("%q", r.name)
}

// Resolve returns the action text the Ref denotes in space.
func (r Ref) Resolve(space ActionSpace) (string, error) {
	if !r.byIndex {
		return r.name, nil
	}
	return space.At(r.index)
}

// Decode splits action text into lines and decodes each line into an
// Action. A reset on the first line makes the whole batch a single
// reset; later lines are ignored. Blank lines are skipped.
func Decode(text string) []Action {
	lines := strings.Split(text, "\n")
	actions := make([]Action, 0, len(lines))
	for _, line := range lines {
		token := strings.TrimSpace(line)
		if token == "" {
			continue
		}
		if len(actions) == 0 && token == ResetToken {
			return []Action{Reset()}
		}
		name := strings.TrimPrefix(token, LoopMarker)
		if strings.HasPrefix(name, NoOpToken) {
			actions = append(actions, NoOp())
			continue
		}
		actions = append(actions, Apply(name))
	}
	return actions
}

// Translate returns the wire tokens for one accepted pass. inLoop is
// the validator's verdict for the properties in effect before the pass.
func Translate(name string, inLoop bool) []string {
	switch {
	case name == LoopFixPass:
		return []string{LoopFixPass, "loop", LoopMarker + "loopinit"}
	case inLoop:
		return []string{LoopMarker + name}
	default:
		return []string{name}
	}
}

// Package review runs the interactive accept/reject dialogue for one
// submitted assignment.
//
// The dialogue is a small state machine:
//
//	Prompt --a--> Done(Accept)
//	Prompt --s--> Done(Skip)
//	Prompt --m--> Marked --a|r|s--> (reason) --> as if a|r|s was typed at Prompt
//	Prompt --r--> ConfirmReject --n--> Prompt
//	              ConfirmReject --y--> Feedback --> Done(Reject)
//
// Unrecognized input repeats the current question. End of input aborts the
// dialogue with ErrInputClosed.
package review

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputClosed is returned when the input ends mid-dialogue.
var ErrInputClosed = errors.New("review input closed before a decision was made")

// Decision is the action taken on an assignment.
type Decision int

const (
	Skip Decision = iota
	Accept
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "skip"
	}
}

// key is the single-letter input for a decision, as stored in marks files.
func (d Decision) key() string {
	switch d {
	case Accept:
		return "a"
	case Reject:
		return "r"
	default:
		return "s"
	}
}

// Mark flags an assignment for later attention.
type Mark struct {
	AssignmentID string
	Decision     Decision
	Reason       string
}

// MarshalJSON writes a mark as [assignment id, "a"|"r"|"s", reason], the
// shape existing marked_assignments.json files use.
func (m Mark) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{m.AssignmentID, m.Decision.key(), m.Reason})
}

// Outcome is the result of one dialogue.
type Outcome struct {
	Decision Decision
	Feedback string
	Mark     *Mark
}

type state int

const (
	statePrompt state = iota
	stateMarked
	stateConfirmReject
	stateFeedback
	stateDone
)

// Prompts.
const (
	PromptDecision = "Would you like to (a)ccept, (r)eject, (s)kip or (m)ark the assignment? [a/r/s/m]: "
	PromptInvalid  = `Please type either "a", "r", "s", or "m".`
	PromptMarked   = "Assignment marked."
	PromptMarkedAs = "Would you like to (a)ccept, (r)eject, or (s)kip this assignment? [a/r/s]: "
	PromptReason   = "Reason for marking? (Can be left blank.) "
	PromptConfirm  = "Confirm rejection of this assignment [y/n]? "
	PromptFeedback = "Assignment rejection feedback: "
)

// Session reads answers from in and writes prompts to out.
type Session struct {
	in  *bufio.Reader
	out io.Writer
}

// NewSession creates a dialogue over the given streams.
func NewSession(in io.Reader, out io.Writer) *Session {
	return &Session{in: bufio.NewReader(in), out: out}
}

// Review shows the assignment and runs the dialogue for it.
func (s *Session) Review(hitID, assignmentID, answersXML string) (Outcome, error) {
	fmt.Fprintf(s.out, "HIT ID: %s\nAssignment ID: %s\n\nAnswers\n=======\n%s\n", hitID, assignmentID, answersXML)
	return s.Decide(assignmentID)
}

// Decide runs the dialogue for one assignment.
func (s *Session) Decide(assignmentID string) (Outcome, error) {
	var out Outcome
	st := statePrompt
	choice := ""

	for st != stateDone {
		switch st {
		case statePrompt:
			in, err := s.ask(PromptDecision)
			if err != nil {
				return Outcome{}, err
			}
			switch in {
			case "a", "r", "s":
				choice = in
				st = s.afterChoice(choice, &out)
			case "m":
				fmt.Fprintln(s.out, PromptMarked)
				st = stateMarked
			default:
				fmt.Fprintln(s.out, PromptInvalid)
			}

		case stateMarked:
			in, err := s.ask(PromptMarkedAs)
			if err != nil {
				return Outcome{}, err
			}
			if in != "a" && in != "r" && in != "s" {
				continue
			}
			choice = in
			reason, err := s.askRaw(PromptReason)
			if err != nil {
				return Outcome{}, err
			}
			out.Mark = &Mark{AssignmentID: assignmentID, Decision: decisionFor(choice), Reason: reason}
			st = s.afterChoice(choice, &out)

		case stateConfirmReject:
			in, err := s.ask(PromptConfirm)
			if err != nil {
				return Outcome{}, err
			}
			switch in {
			case "y":
				st = stateFeedback
			case "n":
				st = statePrompt
			}

		case stateFeedback:
			feedback, err := s.askRaw(PromptFeedback)
			if err != nil {
				return Outcome{}, err
			}
			out.Decision = Reject
			out.Feedback = feedback
			st = stateDone
		}
	}
	return out, nil
}

func (s *Session) afterChoice(choice string, out *Outcome) state {
	switch choice {
	case "a":
		out.Decision = Accept
		return stateDone
	case "r":
		return stateConfirmReject
	default:
		out.Decision = Skip
		return stateDone
	}
}

func decisionFor(choice string) Decision {
	switch choice {
	case "a":
		return Accept
	case "r":
		return Reject
	default:
		return Skip
	}
}

// ask prompts and returns the trimmed, lower-cased reply.
func (s *Session) ask(prompt string) (string, error) {
	in, err := s.askRaw(prompt)
	return strings.ToLower(in), err
}

// askRaw prompts and returns the trimmed reply. A final line without a
// newline still counts as a reply.
func (s *Session) askRaw(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("read review input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// WriteMarks writes marks as a JSON array.
func WriteMarks(w io.Writer, marks []Mark) error {
	if marks == nil {
		marks = []Mark{}
	}
	data, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("encode marks: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

package citybot

import (
	"regexp"
	"strings"
)

// Dialog names an action the router can select.
type Dialog string

// Dialogs in routing order.
const (
	DialogGreet               Dialog = "greet"
	DialogReset               Dialog = "reset"
	DialogPrintCurrentCity    Dialog = "printCurrentCity"
	DialogChangeCurrentCity   Dialog = "changeCurrentCity"
	DialogChangeMyCurrentCity Dialog = "changeMyCurrentCity"
	DialogSearch              Dialog = "search"
)

// Input is what the router needs to know about a turn.
type Input struct {
	HasUserName bool
	Welcomed    bool
	Text        string
}

// Selection is the router's decision. City carries the trimmed capture of
// the change-city triggers. WelcomeBack asks for the welcome-back message to
// be sent before the selected dialog runs.
type Selection struct {
	Dialog      Dialog
	City        string
	WelcomeBack bool
}

// Trigger is a text pattern bound to a dialog.
type Trigger struct {
	Dialog  Dialog
	Pattern *regexp.Regexp
}

var triggers = []Trigger{
	{Dialog: DialogReset, Pattern: regexp.MustCompile(`(?i)^reset`)},
	{Dialog: DialogPrintCurrentCity, Pattern: regexp.MustCompile(`(?i)^current city`)},
	{Dialog: DialogChangeCurrentCity, Pattern: regexp.MustCompile(`(?i)^change city to (.+)`)},
	{Dialog: DialogChangeMyCurrentCity, Pattern: regexp.MustCompile(`(?i)^change my city to (.+)`)},
}

// Triggers returns the text triggers in evaluation order.
func Triggers() []Trigger {
	return append([]Trigger(nil), triggers...)
}

type rule struct {
	match func(in Input) (Selection, bool)
}

var rules = []rule{
	{match: func(in Input) (Selection, bool) {
		return Selection{Dialog: DialogGreet}, !in.HasUserName
	}},
	{match: matchTriggers},
	{match: func(in Input) (Selection, bool) {
		return Selection{Dialog: DialogSearch, WelcomeBack: true}, !in.Welcomed
	}},
}

func matchTriggers(in Input) (Selection, bool) {
	for _, tr := range triggers {
		m := tr.Pattern.FindStringSubmatch(in.Text)
		if m == nil {
			continue
		}
		sel := Selection{Dialog: tr.Dialog}
		if len(m) > 1 {
			sel.City = strings.TrimSpace(m[1])
		}
		return sel, true
	}
	return Selection{}, false
}

// Route picks exactly one dialog for the turn; the first matching rule wins
// and search is the default.
func Route(in Input) Selection {
	for _, r := range rules {
		if sel, ok := r.match(in); ok {
			return sel
		}
	}
	return Selection{Dialog: DialogSearch}
}

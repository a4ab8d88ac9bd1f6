package keyboard

import "testing"

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"current city", ""}, nil, []string{"reset"})
	if !m.ResizeKeyboard {
		t.Fatalf("keyboard should be resizable")
	}
	if len(m.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.ReplyKeyboard))
	}
	if got := m.ReplyKeyboard[0][0].Text; got != "current city" {
		t.Fatalf("first button = %q", got)
	}
	if len(m.ReplyKeyboard[0]) != 1 {
		t.Fatalf("empty label should be skipped: %+v", m.ReplyKeyboard[0])
	}
}

func TestRemoveKeyboard(t *testing.T) {
	if !RemoveKeyboard().RemoveKeyboard {
		t.Fatalf("RemoveKeyboard should set the flag")
	}
}

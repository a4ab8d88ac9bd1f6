package citybot

import "testing"

func TestRouteWithoutNameAlwaysGreets(t *testing.T) {
	texts := []string{"", "reset", "current city", "change city to Tokyo", "change my city to Austin", "coffee"}
	for _, text := range texts {
		for _, welcomed := range []bool{false, true} {
			sel := Route(Input{HasUserName: false, Welcomed: welcomed, Text: text})
			if sel.Dialog != DialogGreet {
				t.Fatalf("Route(%q, welcomed=%v) = %s, want greet", text, welcomed, sel.Dialog)
			}
		}
	}
}

func TestRouteTriggers(t *testing.T) {
	tests := []struct {
		text string
		want Selection
	}{
		{"reset", Selection{Dialog: DialogReset}},
		{"RESET please", Selection{Dialog: DialogReset}},
		{"Current City", Selection{Dialog: DialogPrintCurrentCity}},
		{"change city to  Tokyo ", Selection{Dialog: DialogChangeCurrentCity, City: "Tokyo"}},
		{"Change City To New York", Selection{Dialog: DialogChangeCurrentCity, City: "New York"}},
		{"change my city to Austin", Selection{Dialog: DialogChangeMyCurrentCity, City: "Austin"}},
		{"change city to   ", Selection{Dialog: DialogChangeCurrentCity, City: ""}},
		{"change city to", Selection{Dialog: DialogSearch}},
		{"please reset", Selection{Dialog: DialogSearch}},
		{"  reset", Selection{Dialog: DialogSearch}},
		{"Coffee shops", Selection{Dialog: DialogSearch}},
	}
	for _, tc := range tests {
		got := Route(Input{HasUserName: true, Welcomed: true, Text: tc.text})
		if got != tc.want {
			t.Fatalf("Route(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestRouteWelcomeBackFallsThroughToSearch(t *testing.T) {
	got := Route(Input{HasUserName: true, Welcomed: false, Text: "pizza"})
	want := Selection{Dialog: DialogSearch, WelcomeBack: true}
	if got != want {
		t.Fatalf("Route = %+v, want %+v", got, want)
	}

	// Triggers take precedence over the welcome-back step.
	got = Route(Input{HasUserName: true, Welcomed: false, Text: "current city"})
	if got.Dialog != DialogPrintCurrentCity || got.WelcomeBack {
		t.Fatalf("Route = %+v, want printCurrentCity", got)
	}
}

func TestTriggersOrder(t *testing.T) {
	want := []Dialog{DialogReset, DialogPrintCurrentCity, DialogChangeCurrentCity, DialogChangeMyCurrentCity}
	got := Triggers()
	if len(got) != len(want) {
		t.Fatalf("triggers = %d, want %d", len(got), len(want))
	}
	for i, tr := range got {
		if tr.Dialog != want[i] {
			t.Fatalf("trigger %d = %s, want %s", i, tr.Dialog, want[i])
		}
	}
}

func TestSearchURL(t *testing.T) {
	tests := []struct {
		base, query, city, want string
	}{
		{DefaultSearchURL, "Coffee shops", "Seattle", "https://www.bing.com/search?q=Coffee%20shops%20in%20Seattle"},
		{DefaultSearchURL, "fish & chips", "St. John's", "https://www.bing.com/search?q=fish%20%26%20chips%20in%20St.%20John's"},
		{"https://example.com/s?lang=en", "tacos", "Austin", "https://example.com/s?lang=en&q=tacos%20in%20Austin"},
	}
	for _, tc := range tests {
		if got := SearchURL(tc.base, tc.query, tc.city); got != tc.want {
			t.Fatalf("SearchURL(%q, %q) = %s, want %s", tc.query, tc.city, got, tc.want)
		}
	}
}

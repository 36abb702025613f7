package irc

import "testing"

func TestCaseMapping_lower(t *testing.T) {
	cases := []struct {
		cm   caseMapping
		in   string
		want string
	}{
		{caseMapAscii, "Nick[]\\^", "nick[]\\^"},
		{caseMapRfc1459, "Nick[]\\^", "nick{}|~"},
		{caseMapRfc1459Strict, "Nick[]\\^", "nick{}|^"},
	}
	for _, c := range cases {
		if got := c.cm.lower(c.in); got != c.want {
			t.Errorf("%v.lower(%q) = %q; want %q", c.cm, c.in, got, c.want)
		}
	}
}

func TestParseCaseMapping(t *testing.T) {
	if parseCaseMapping("ascii") != caseMapAscii {
		t.Errorf("parseCaseMapping(ascii) did not return caseMapAscii")
	}
	if parseCaseMapping("strict-rfc1459") != caseMapRfc1459Strict {
		t.Errorf("parseCaseMapping(strict-rfc1459) did not return caseMapRfc1459Strict")
	}
	if parseCaseMapping("bogus") != caseMapRfc1459 {
		t.Errorf("parseCaseMapping(bogus) did not fall back to caseMapRfc1459")
	}
}

func TestChanModeClasses_has(t *testing.T) {
	m := ChanModeClasses{A: "beI", B: "ov", C: "k", D: "imnpst"}
	if !m.has('a', 'b') || !m.has('b', 'o') || !m.has('c', 'k') || !m.has('d', 'm') {
		t.Errorf("has() returned false for a known mode in its class")
	}
	if m.has('a', 'z') {
		t.Errorf("has() returned true for an unlisted mode")
	}
}

func TestSession_getOrCreateChan(t *testing.T) {
	s := NewSession("alice")
	cd := s.getOrCreateChan("#Foo")
	if cd.ServerName != "#Foo" {
		t.Errorf("ServerName = %q; want #Foo", cd.ServerName)
	}
	cd2 := s.getOrCreateChan("#foo")
	if cd2 != cd {
		t.Errorf("getOrCreateChan(#foo) returned a different ChanData than the one created for #Foo")
	}
	if cd2.ServerName != "#Foo" {
		t.Errorf("ServerName changed to %q after re-fetch; want original casing #Foo preserved", cd2.ServerName)
	}
}

func TestSession_removeChanData(t *testing.T) {
	s := NewSession("alice")
	s.getOrCreateChan("#foo")
	s.removeChanData("#FOO")
	if s.chan_("#foo") != nil {
		t.Errorf("channel state for #foo still present after removeChanData")
	}
}

func TestSession_removeNickEverywhere(t *testing.T) {
	s := NewSession("alice")
	a := s.getOrCreateChan("#a")
	b := s.getOrCreateChan("#b")
	a.Users["Bob"] = ""
	b.Users["bob"] = "@"
	s.removeNickEverywhere("BOB")
	if len(a.Users) != 0 || len(b.Users) != 0 {
		t.Errorf("removeNickEverywhere left entries: #a=%v #b=%v", a.Users, b.Users)
	}
}

func TestSession_renameNickEverywhere(t *testing.T) {
	s := NewSession("alice")
	a := s.getOrCreateChan("#a")
	a.Users["Bob"] = "@"
	s.renameNickEverywhere("bob", "Robert")
	if _, ok := a.Users["Bob"]; ok {
		t.Errorf("old nick entry still present after rename")
	}
	if a.Users["Robert"] != "@" {
		t.Errorf("renamed entry = %q; want prefix @ preserved under new nick", a.Users["Robert"])
	}
}

func TestSession_whois(t *testing.T) {
	s := NewSession("alice")
	w1 := s.whois("carol")
	w1.Realname = "Carol Danvers"
	w2 := s.whois("carol")
	if w2 != w1 || w2.Realname != "Carol Danvers" {
		t.Errorf("whois() created a new accumulator for an in-flight nick")
	}
}

func TestSession_flush(t *testing.T) {
	s := NewSession("alice")
	called := false
	s.Flush = func(*Session) { called = true }
	s.flush()
	if !called {
		t.Errorf("flush() did not invoke the Flush hook")
	}
}

func TestDefaultIrcSupported(t *testing.T) {
	sup := defaultIrcSupported()
	if sup.ChanTypes != "&#" {
		t.Errorf("ChanTypes = %q; want \"&#\"", sup.ChanTypes)
	}
	if sup.NickLength != 9 {
		t.Errorf("NickLength = %d; want 9", sup.NickLength)
	}
	if sup.PrefixForMode["o"] != "@" || sup.ModeForPrefix["@"] != "o" {
		t.Errorf("default prefix maps missing @/o")
	}
}

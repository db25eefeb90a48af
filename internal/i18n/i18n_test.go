// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package i18n

import (
	"strings"
	"testing"
)

func TestTranslateKnownKey(t *testing.T) {
	Init("en")
	got := T("menu.testing")
	if got == "menu.testing" || got == "" {
		t.Fatalf("expected a translation for menu.testing, got %q", got)
	}
}

func TestTranslateWithArgs(t *testing.T) {
	Init("en")
	got := T("dashboard.subtitle", "bench-1")
	if !strings.Contains(got, "bench-1") {
		t.Errorf("expected station name in subtitle, got %q", got)
	}
}

func TestUnknownKeyFallsBackToID(t *testing.T) {
	Init("en")
	if got := T("no.such.key"); got != "no.such.key" {
		t.Errorf("expected ID fallback, got %q", got)
	}
}

func TestSetLangSwitchesTranslations(t *testing.T) {
	Init("en")
	en := T("menu.reports")
	SetLang("de")
	defer SetLang("en")
	de := T("menu.reports")
	if en == de {
		t.Errorf("expected different translations, got %q for both", en)
	}
	if GetLang() != "de" {
		t.Errorf("expected active language de, got %q", GetLang())
	}
}

func TestGetAvailableLocales(t *testing.T) {
	locales := GetAvailableLocales()
	for _, code := range []string{"en", "de"} {
		if _, ok := locales[code]; !ok {
			t.Errorf("expected locale %q to be embedded", code)
		}
	}
}

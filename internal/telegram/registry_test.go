package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/saldo", Command{Handler: noop, Description: "Mostra il saldo"})
	r.RegisterCommand("saldo", Command{Handler: noop, Description: "no slash"})
	r.RegisterCommand("/vuoto", Command{Description: "nil handler"})
	r.RegisterCommand("/saldo", Command{Handler: noop, Description: "duplicate"})

	if len(r.Commands()) != 1 {
		t.Fatalf("commands = %d, want 1", len(r.Commands()))
	}
	if r.Commands()["/saldo"].Description != "Mostra il saldo" {
		t.Fatal("duplicate registration overwrote the original")
	}
}

func TestMenuCommandsHidesAdminAndHidden(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/saldo", Command{Handler: noop, Description: "saldo"})
	r.RegisterCommand("/ricarica", Command{Handler: noop, Description: "ricarica"})
	r.RegisterCommand("/credita", Command{Handler: noop, Description: "credita", AdminOnly: true})
	r.RegisterCommand("/debug", Command{Handler: noop, Description: "debug", Hidden: true})

	menu := r.MenuCommands()
	if len(menu) != 2 {
		t.Fatalf("menu = %d entries, want 2", len(menu))
	}
	if menu[0].Text != "ricarica" || menu[1].Text != "saldo" {
		t.Fatalf("menu order = %q, %q", menu[0].Text, menu[1].Text)
	}
}

func TestCallbackLookup(t *testing.T) {
	r := NewRegistry()
	r.RegisterCallback("approve", noop)
	r.RegisterCallback("slot", noop)

	if _, ok := r.Callback("approve"); !ok {
		t.Fatal("approve not found")
	}
	if _, ok := r.Callback("reject"); ok {
		t.Fatal("unregistered key found")
	}
	keys := r.ListCallbacks()
	if len(keys) != 2 || keys[0] != "approve" || keys[1] != "slot" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestCallbackKey(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"approve:12", "approve"},
		{"user:approve:42", "user"},
		{"cancel", "cancel"},
		{"\fslot:3", "slot"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := callbackKey(tc.data); got != tc.want {
			t.Errorf("callbackKey(%q) = %q, want %q", tc.data, got, tc.want)
		}
	}
}

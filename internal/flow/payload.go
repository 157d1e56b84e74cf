package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is an admin decision verb.
type Action string

const (
	// ActionApprove approves a request or a registration.
	ActionApprove Action = "approve"
	// ActionReject rejects a request or a registration.
	ActionReject Action = "reject"
)

// ErrMalformedDecision reports a decision payload that does not parse to
// the exact expected shape. It is rejected before any lookup.
var ErrMalformedDecision = errors.New("malformed decision payload")

// RequestToken renders a request decision control payload: "approve:<id>".
func RequestToken(a Action, requestID int64) string {
	return fmt.Sprintf("%s:%d", a, requestID)
}

// ParseRequestToken parses "approve:<id>" / "reject:<id>".
func ParseRequestToken(raw string) (Action, int64, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return "", 0, ErrMalformedDecision
	}
	act, err := parseAction(parts[0])
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(parts[1])
	if err != nil {
		return "", 0, err
	}
	return act, id, nil
}

// UserToken renders a registration decision payload: "user:approve:<id>".
func UserToken(a Action, userID int64) string {
	return fmt.Sprintf("user:%s:%d", a, userID)
}

// ParseUserToken parses "user:approve:<id>" / "user:reject:<id>".
func ParseUserToken(raw string) (Action, int64, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] != "user" {
		return "", 0, ErrMalformedDecision
	}
	act, err := parseAction(parts[1])
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(parts[2])
	if err != nil {
		return "", 0, err
	}
	return act, id, nil
}

func parseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", ErrMalformedDecision
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformedDecision
	}
	return id, nil
}

// Draft flow control payloads carried by the inline keyboards.
const (
	// TokenCancel aborts the flow from any state.
	TokenCancel = "cancel"
	// TokenConfirm finalizes the draft.
	TokenConfirm = "confirm"
	// TokenAddNote switches from confirm to the note prompt.
	TokenAddNote = "note"
)

// SlotToken renders a slot selection payload: "slot:<n>".
func SlotToken(slot int) string {
	return fmt.Sprintf("slot:%d", slot)
}

// ParseSlotToken parses "slot:<n>".
func ParseSlotToken(raw string) (int, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 || parts[0] != "slot" {
		return 0, ErrMalformedDecision
	}
	slot, err := strconv.Atoi(parts[1])
	if err != nil || slot <= 0 {
		return 0, ErrMalformedDecision
	}
	return slot, nil
}

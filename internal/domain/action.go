package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType: тег варианта действия шага.
type ActionType string

const (
	ActionSend   ActionType = "send"
	ActionDelay  ActionType = "delay"
	ActionWait   ActionType = "wait"
	ActionBranch ActionType = "branch"
)

// Action: закрытый набор вариантов действия шага.
//
// Реализации: SendAction, DelayAction, WaitAction, BranchAction.
// Каждый вариант несёт только свои поля.
type Action interface {
	Type() ActionType
	isAction()
}

// SendAction отправляет сообщение через delivery-коллаборатор.
type SendAction struct {
	Recipient string         `json:"recipient" mapstructure:"recipient" validate:"required"`
	Template  string         `json:"template" mapstructure:"template" validate:"required"`
	Brand     string         `json:"brand,omitempty" mapstructure:"brand"`
	Profile   map[string]any `json:"profile,omitempty" mapstructure:"profile"`
	Override  map[string]any `json:"override,omitempty" mapstructure:"override"`
}

// DelayAction приостанавливает run на Duration или до Until.
type DelayAction struct {
	Duration time.Duration `json:"duration,omitempty" mapstructure:"duration" validate:"required_without=Until,gte=0"`
	Until    *time.Time    `json:"until,omitempty" mapstructure:"until" validate:"required_without=Duration"`
}

// WaitAction ждёт внешнего события по ref шага. Timeout необязателен.
type WaitAction struct {
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"`
}

// BranchAction вычисляет условие If и переходит к шагу с ref Then или Else.
// Пустая цель означает переход к следующему шагу.
type BranchAction struct {
	If   string `json:"if" mapstructure:"if" validate:"required"`
	Then string `json:"then,omitempty" mapstructure:"then"`
	Else string `json:"else,omitempty" mapstructure:"else"`
}

func (SendAction) Type() ActionType   { return ActionSend }
func (DelayAction) Type() ActionType  { return ActionDelay }
func (WaitAction) Type() ActionType   { return ActionWait }
func (BranchAction) Type() ActionType { return ActionBranch }

func (SendAction) isAction()   {}
func (DelayAction) isAction()  {}
func (WaitAction) isAction()   {}
func (BranchAction) isAction() {}

// WakeAt возвращает момент пробуждения delay-шага относительно now.
func (a DelayAction) WakeAt(now time.Time) time.Time {
	if a.Until != nil {
		return a.Until.UTC()
	}
	return now.Add(a.Duration).UTC()
}

// UnmarshalAction восстанавливает вариант действия из JSON по тегу.
func UnmarshalAction(t ActionType, raw []byte) (Action, error) {
	switch t {
	case ActionSend:
		var a SendAction
		err := json.Unmarshal(raw, &a)
		return a, err
	case ActionDelay:
		var a DelayAction
		err := json.Unmarshal(raw, &a)
		return a, err
	case ActionWait:
		var a WaitAction
		err := json.Unmarshal(raw, &a)
		return a, err
	case ActionBranch:
		var a BranchAction
		err := json.Unmarshal(raw, &a)
		return a, err
	default:
		return nil, fmt.Errorf("unknown action %q", t)
	}
}

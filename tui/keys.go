package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Trigger  key.Binding
	LearnIn  key.Binding
	LearnOut key.Binding
	Arm      key.Binding
	Cancel   key.Binding
	Mode     key.Binding
	EditCC   key.Binding
	Add      key.Binding
	Delete   key.Binding
	Save     key.Binding
	Load     key.Binding
	Connect  key.Binding
	Lang     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func bind(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

func newKeyMap(s Strings) keyMap {
	return keyMap{
		Up:       bind(s.HelpUp, "k", "up"),
		Down:     bind(s.HelpDown, "j", "down"),
		Trigger:  bind(s.HelpTrigger, "space", " ", "enter"),
		LearnIn:  bind(s.HelpLearnIn, "i"),
		LearnOut: bind(s.HelpLearnOut, "o"),
		Arm:      bind(s.HelpArm, "a"),
		Cancel:   bind(s.HelpCancel, "esc"),
		Mode:     bind(s.HelpMode, "m"),
		EditCC:   bind(s.HelpEditCC, "c"),
		Add:      bind(s.HelpAdd, "+", "="),
		Delete:   bind(s.HelpDelete, "x", "delete"),
		Save:     bind(s.HelpSave, "s"),
		Load:     bind(s.HelpLoad, "l"),
		Connect:  bind(s.HelpConnect, "r"),
		Lang:     bind(s.HelpLang, "L"),
		Help:     bind(s.HelpHelp, "?"),
		Quit:     bind(s.HelpQuit, "q", "ctrl+c"),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Trigger, k.LearnIn, k.LearnOut, k.Mode, k.Connect, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Trigger, k.Mode},
		{k.Arm, k.LearnIn, k.LearnOut, k.Cancel, k.EditCC},
		{k.Add, k.Delete, k.Save, k.Load},
		{k.Connect, k.Lang, k.Help, k.Quit},
	}
}

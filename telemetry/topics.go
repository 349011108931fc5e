package telemetry

import (
	"fmt"
	"strings"
)

// DefaultPrefix roots every topic when settings leave it empty.
const DefaultPrefix = "mvave"

// Topics builds the topic hierarchy under one prefix:
//
//	<prefix>/status                  online/offline (retained, LWT)
//	<prefix>/connection              MIDI connection state (retained)
//	<prefix>/switch/<id>/state       switch state (retained)
//	<prefix>/learning                learn progress
//	<prefix>/cmd/<action>            remote commands
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultPrefix
	}
	return p
}

func (t Topics) Status() string {
	return t.prefix() + "/status"
}

func (t Topics) Connection() string {
	return t.prefix() + "/connection"
}

func (t Topics) SwitchState(controlID string) string {
	return fmt.Sprintf("%s/switch/%s/state", t.prefix(), controlID)
}

func (t Topics) Learning() string {
	return t.prefix() + "/learning"
}

func (t Topics) Command(action string) string {
	return fmt.Sprintf("%s/cmd/%s", t.prefix(), action)
}

// AllCommands is the subscription pattern for every command action.
func (t Topics) AllCommands() string {
	return t.prefix() + "/cmd/+"
}

// CommandAction extracts the action from a command topic.
func (t Topics) CommandAction(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/cmd/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

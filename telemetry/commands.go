package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"

	"mvave-bridge/bridge"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
)

// Commander is the set of engine entry points reachable over MQTT.
// *bridge.Engine implements it.
type Commander interface {
	Trigger(id string) error
	Arm() error
	RequestTarget(id string, field bridge.Field) error
	Disarm()
	SetMode(id string, mode bridge.Mode) error
	SetInputCC(id string, cc midi.CC) error
	SetOutputCC(id string, cc midi.CC) error
	AddSwitch() (bridge.Switch, error)
	DeleteSwitch(id string) error
}

// Command actions, the last segment of <prefix>/cmd/<action>.
const (
	ActionTrigger  = "trigger"
	ActionArm      = "arm"
	ActionLearn    = "learn"
	ActionDisarm   = "disarm"
	ActionMode     = "mode"
	ActionInputCC  = "input_cc"
	ActionOutputCC = "output_cc"
	ActionAdd      = "add"
	ActionDelete   = "delete"
)

// Command is the JSON payload of a command message. Which fields matter
// depends on the action; an empty payload is accepted for arm, disarm and add.
type Command struct {
	ID    string `json:"id,omitempty"`
	Field string `json:"field,omitempty"`
	Mode  string `json:"mode,omitempty"`
	CC    *int   `json:"cc,omitempty"`
}

// CommandListener subscribes to the command topics and drives the engine.
type CommandListener struct {
	target Commander
	topics Topics
	logger *logging.Logger
}

func NewCommandListener(target Commander, prefix string, logger *logging.Logger) *CommandListener {
	return &CommandListener{
		target: target,
		topics: Topics{Prefix: prefix},
		logger: logging.OrDefault(logger).Category("mqtt"),
	}
}

// Start subscribes on b. Handlers run on paho goroutines; the engine
// serializes them.
func (l *CommandListener) Start(b Broker) error {
	return b.Subscribe(l.topics.AllCommands(), l.Handle)
}

// Handle executes one command message.
func (l *CommandListener) Handle(topic string, payload []byte) error {
	action, ok := l.topics.CommandAction(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrBadCommand, topic)
	}

	var cmd Command
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("%w: %s payload: %w", ErrBadCommand, action, err)
		}
	}

	err := l.dispatch(action, cmd)
	if err != nil {
		// rejected operations are routine; only malformed input is a warning
		if errors.Is(err, ErrBadCommand) {
			return err
		}
		l.logger.Info("command rejected", "action", action, "id", cmd.ID, "error", err)
		return nil
	}
	l.logger.Debug("command executed", "action", action, "id", cmd.ID)
	return nil
}

func (l *CommandListener) dispatch(action string, cmd Command) error {
	needID := func() error {
		if cmd.ID == "" {
			return fmt.Errorf("%w: %s needs an id", ErrBadCommand, action)
		}
		return nil
	}

	switch action {
	case ActionTrigger:
		if err := needID(); err != nil {
			return err
		}
		return l.target.Trigger(cmd.ID)

	case ActionArm:
		return l.target.Arm()

	case ActionLearn:
		if err := needID(); err != nil {
			return err
		}
		field := bridge.FieldInput
		if cmd.Field != "" {
			f, err := bridge.ParseField(cmd.Field)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBadCommand, err)
			}
			field = f
		}
		return l.target.RequestTarget(cmd.ID, field)

	case ActionDisarm:
		l.target.Disarm()
		return nil

	case ActionMode:
		if err := needID(); err != nil {
			return err
		}
		mode, err := bridge.ParseMode(cmd.Mode)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadCommand, err)
		}
		return l.target.SetMode(cmd.ID, mode)

	case ActionInputCC, ActionOutputCC:
		if err := needID(); err != nil {
			return err
		}
		cc := midi.NoCC
		if cmd.CC != nil {
			c, err := midi.CheckCC(*cmd.CC)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBadCommand, err)
			}
			cc = c
		}
		if action == ActionInputCC {
			return l.target.SetInputCC(cmd.ID, cc)
		}
		if cmd.CC == nil {
			return fmt.Errorf("%w: %s needs a cc", ErrBadCommand, action)
		}
		return l.target.SetOutputCC(cmd.ID, cc)

	case ActionAdd:
		_, err := l.target.AddSwitch()
		return err

	case ActionDelete:
		if err := needID(); err != nil {
			return err
		}
		return l.target.DeleteSwitch(cmd.ID)
	}
	return fmt.Errorf("%w: unknown action %q", ErrBadCommand, action)
}

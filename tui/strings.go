package tui

import (
	"golang.org/x/text/language"
)

// Strings is one UI string table.
type Strings struct {
	Code string

	AppTitle     string
	Switch       string
	InputCC      string
	OutputCC     string
	Mode         string
	Toggle       string
	Momentary    string
	NotAssigned  string
	Connected    string
	Disconnected string
	Input        string
	Output       string

	Learning       string // armed, no target
	PressPhysical  string // aimed at input, %s = switch label
	PressOutput    string // aimed at output, %s = switch label
	LearnAssigned  string // %s = switch, %s = field, %s = cc
	LearnCancelled string

	Saved        string // %s = path
	Loaded       string // %s = path, %d = warnings
	Added        string // %s = switch
	Deleted      string // %s = switch
	LimitReached string // %d = max
	Protected    string
	NeedConnect  string
	EnterCC      string
	Diverged     string

	LegendOn       string
	LegendLearning string

	HelpUp, HelpDown, HelpTrigger, HelpLearnIn, HelpLearnOut string
	HelpArm, HelpCancel, HelpMode, HelpEditCC, HelpAdd       string
	HelpDelete, HelpSave, HelpLoad, HelpConnect, HelpLang    string
	HelpHelp, HelpQuit                                       string
}

var english = Strings{
	Code:           "en",
	AppTitle:       "M-VAVE MIDI bridge",
	Switch:         "SW",
	InputCC:        "in",
	OutputCC:       "out",
	Mode:           "mode",
	Toggle:         "toggle",
	Momentary:      "momentary",
	NotAssigned:    "-",
	Connected:      "connected",
	Disconnected:   "disconnected",
	Input:          "input",
	Output:         "output",
	Learning:       "Learning: pick a switch field (i / o)",
	PressPhysical:  "Press the physical control for %s",
	PressOutput:    "Send the output CC for %s",
	LearnAssigned:  "%s %s CC set to %s",
	LearnCancelled: "Learning cancelled",
	Saved:          "Saved %s",
	Loaded:         "Loaded %s (%d warnings)",
	Added:          "Added %s",
	Deleted:        "Deleted %s",
	LimitReached:   "Limit reached (%d)",
	Protected:      "Default switches cannot be deleted",
	NeedConnect:    "Connect a MIDI device first",
	EnterCC:        "Output CC (0-127): ",
	Diverged:       "output rejected",
	LegendOn:       "switch on",
	LegendLearning: "waiting for a controller",
	HelpUp:         "up",
	HelpDown:       "down",
	HelpTrigger:    "trigger",
	HelpLearnIn:    "learn input",
	HelpLearnOut:   "learn output",
	HelpArm:        "learn mode",
	HelpCancel:     "cancel learn",
	HelpMode:       "toggle/momentary",
	HelpEditCC:     "edit output cc",
	HelpAdd:        "add switch",
	HelpDelete:     "delete switch",
	HelpSave:       "save",
	HelpLoad:       "load",
	HelpConnect:    "connect/disconnect",
	HelpLang:       "language",
	HelpHelp:       "more keys",
	HelpQuit:       "quit",
}

var spanish = Strings{
	Code:           "es",
	AppTitle:       "Puente MIDI M-VAVE",
	Switch:         "SW",
	InputCC:        "entrada",
	OutputCC:       "salida",
	Mode:           "modo",
	Toggle:         "alternar",
	Momentary:      "momentáneo",
	NotAssigned:    "-",
	Connected:      "conectado",
	Disconnected:   "desconectado",
	Input:          "entrada",
	Output:         "salida",
	Learning:       "Aprender: elige un campo (i / o)",
	PressPhysical:  "Presiona el control físico para %s",
	PressOutput:    "Envía el CC de salida para %s",
	LearnAssigned:  "%s: CC de %s = %s",
	LearnCancelled: "Aprendizaje cancelado",
	Saved:          "Guardado %s",
	Loaded:         "Cargado %s (%d avisos)",
	Added:          "Añadido %s",
	Deleted:        "Eliminado %s",
	LimitReached:   "Límite alcanzado (%d)",
	Protected:      "Los switches por defecto no se pueden eliminar",
	NeedConnect:    "Conecta primero un dispositivo MIDI",
	EnterCC:        "CC de salida (0-127): ",
	Diverged:       "salida rechazada",
	LegendOn:       "switch encendido",
	LegendLearning: "esperando un control",
	HelpUp:         "subir",
	HelpDown:       "bajar",
	HelpTrigger:    "disparar",
	HelpLearnIn:    "aprender entrada",
	HelpLearnOut:   "aprender salida",
	HelpArm:        "modo aprender",
	HelpCancel:     "cancelar",
	HelpMode:       "alternar/momentáneo",
	HelpEditCC:     "editar cc de salida",
	HelpAdd:        "añadir switch",
	HelpDelete:     "eliminar switch",
	HelpSave:       "guardar",
	HelpLoad:       "cargar",
	HelpConnect:    "conectar/desconectar",
	HelpLang:       "idioma",
	HelpHelp:       "más teclas",
	HelpQuit:       "salir",
}

var (
	catalog = []Strings{english, spanish}
	matcher = language.NewMatcher([]language.Tag{language.English, language.Spanish})
)

// StringsFor picks the best table for the preferences given, most
// preferred first (for example the saved language, then $LANG). Unknown
// or empty preferences select English.
func StringsFor(prefs ...string) Strings {
	var nonEmpty []string
	for _, p := range prefs {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return english
	}
	_, idx := language.MatchStrings(matcher, nonEmpty...)
	return catalog[idx]
}

// next cycles to the following language table.
func (s Strings) next() Strings {
	for i, c := range catalog {
		if c.Code == s.Code {
			return catalog[(i+1)%len(catalog)]
		}
	}
	return english
}

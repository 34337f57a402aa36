package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Command actions understood by the command service. Chat-facing names are
// configured per action in Messages.Commands.
const (
	ActionHelp     = "help"
	ActionAdd      = "add"
	ActionDelete   = "delete"
	ActionSubjects = "subjects"
	ActionFree     = "free"
	ActionBook     = "book"
)

// Actions lists every action in help order.
var Actions = []string{ActionHelp, ActionAdd, ActionDelete, ActionSubjects, ActionFree, ActionBook}

// CommandText describes one command as shown to chat users.
type CommandText struct {
	Name        string `yaml:"name"`
	Usage       string `yaml:"usage"`
	Description string `yaml:"description"`
}

// ErrorTexts holds one template per failure users can see.
type ErrorTexts struct {
	IncorrectUsage     string `yaml:"incorrect_usage"`
	UnknownCommand     string `yaml:"unknown_command"`
	IncorrectTask      string `yaml:"incorrect_task"`
	NotFound           string `yaml:"not_found"`
	AlreadyExists      string `yaml:"already_exists"`
	AlreadyBooked      string `yaml:"already_booked"`
	SlotTaken          string `yaml:"slot_taken"`
	StorageUnavailable string `yaml:"storage_unavailable"`
	StorageIO          string `yaml:"storage_io"`
}

// Messages holds the user-facing templates. Placeholders: %sub%, %count%,
// %task%, %user%, %free%, %cmd%, %usage%, %desc%.
type Messages struct {
	Commands       map[string]CommandText `yaml:"commands"`
	VerboseKeyword string                 `yaml:"verbose_keyword"`

	HelpHeader     string `yaml:"help_header"`
	HelpEntry      string `yaml:"help_entry"`
	Created        string `yaml:"created"`
	Deleted        string `yaml:"deleted"`
	SubjectsHeader string `yaml:"subjects_header"`
	SubjectsEntry  string `yaml:"subjects_entry"`
	SubjectsEmpty  string `yaml:"subjects_empty"`
	FreeHeader     string `yaml:"free_header"`
	FreeEntry      string `yaml:"free_entry"`
	FreeTask       string `yaml:"free_task"`
	FreeNone       string `yaml:"free_none"`
	Mention        string `yaml:"mention"`
	Booked         string `yaml:"booked"`

	Errors ErrorTexts `yaml:"errors"`
}

// DefaultMessages returns the built-in English templates.
func DefaultMessages() *Messages {
	return &Messages{
		Commands: map[string]CommandText{
			ActionHelp:     {Name: "help", Description: "show this list"},
			ActionAdd:      {Name: "add", Usage: "<subject> <count>", Description: "create a subject with <count> tasks"},
			ActionDelete:   {Name: "delete", Usage: "<subject>", Description: "delete a subject and all its bookings"},
			ActionSubjects: {Name: "subjects", Description: "list subjects and free tasks"},
			ActionFree:     {Name: "free", Usage: "<subject> [all]", Description: "show free tasks, or every task with 'all'"},
			ActionBook:     {Name: "book", Usage: "<subject> <task>", Description: "book a task for yourself"},
		},
		VerboseKeyword: "all",
		HelpHeader:     "Available commands:",
		HelpEntry:      "📎 - /%cmd% %usage% %desc%\n",
		Created:        "Subject %sub% with %count% tasks created.",
		Deleted:        "Subject %sub% deleted.",
		SubjectsHeader: "Subjects:",
		SubjectsEntry:  "%sub%: %free%/%count% free\n",
		SubjectsEmpty:  "No subjects yet.",
		FreeHeader:     "Tasks in %sub%:",
		FreeEntry:      "%task% - %user%\n",
		FreeTask:       "free",
		FreeNone:       "No free tasks in %sub%.",
		Mention:        "@id%user%",
		Booked:         "%user% booked task %task% in %sub%.",
		Errors: ErrorTexts{
			IncorrectUsage:     "Incorrect usage. Send /help for the command list.",
			UnknownCommand:     "Unknown command. Send /help for the command list.",
			IncorrectTask:      "Task %task% does not exist in %sub%.",
			NotFound:           "Subject %sub% not found.",
			AlreadyExists:      "Subject %sub% already exists.",
			AlreadyBooked:      "You already booked task %task% in %sub%.",
			SlotTaken:          "Task %task% in %sub% is already taken.",
			StorageUnavailable: "Subject storage is unavailable, try again later.",
			StorageIO:          "Something went wrong while saving, try again.",
		},
	}
}

// LoadMessages reads templates from a YAML file on top of the defaults.
// An empty path returns the defaults.
func LoadMessages(path string) (*Messages, error) {
	msgs := DefaultMessages()
	if path == "" {
		return msgs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}

	var overrides Messages
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse messages file: %w", err)
	}
	msgs.merge(&overrides)

	if err := msgs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid messages file %s: %w", path, err)
	}
	return msgs, nil
}

// Validate checks that every action has a unique, non-empty command name.
func (m *Messages) Validate() error {
	names := make(map[string]string, len(Actions))
	for _, action := range Actions {
		cmd, ok := m.Commands[action]
		if !ok || strings.TrimSpace(cmd.Name) == "" {
			return fmt.Errorf("command %q has no name", action)
		}
		name := strings.ToLower(cmd.Name)
		if other, dup := names[name]; dup {
			return fmt.Errorf("commands %q and %q share the name %q", other, action, name)
		}
		names[name] = action
	}
	if strings.TrimSpace(m.VerboseKeyword) == "" {
		return errors.New("verbose_keyword is empty")
	}
	return nil
}

// Action resolves a chat command name to its action.
func (m *Messages) Action(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, action := range Actions {
		if strings.ToLower(m.Commands[action].Name) == name {
			return action, true
		}
	}
	return "", false
}

// Format substitutes placeholder/value pairs into tmpl.
func Format(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// merge copies every non-empty template from o into m.
func (m *Messages) merge(o *Messages) {
	for action, cmd := range o.Commands {
		cur := m.Commands[action]
		if cmd.Name != "" {
			cur.Name = cmd.Name
		}
		if cmd.Usage != "" {
			cur.Usage = cmd.Usage
		}
		if cmd.Description != "" {
			cur.Description = cmd.Description
		}
		m.Commands[action] = cur
	}
	overlayStrings(reflect.ValueOf(m).Elem(), reflect.ValueOf(o).Elem())
}

func overlayStrings(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		df, sf := dst.Field(i), src.Field(i)
		switch df.Kind() {
		case reflect.String:
			if sf.String() != "" {
				df.SetString(sf.String())
			}
		case reflect.Struct:
			overlayStrings(df, sf)
		}
	}
}

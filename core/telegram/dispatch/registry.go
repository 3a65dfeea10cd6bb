package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/telegram/commands"
)

// Registry holds the slash commands the dispatcher routes.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]commands.Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// DefaultRegistry returns a registry holding commands.Defaults.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, cmd := range commands.Defaults() {
		_ = r.RegisterCommand(name, cmd)
	}
	return r
}

// RegisterCommand adds a command. Names need a leading slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || cmd.Mode == "" || cmd.Description == "" {
		return errors.New("dispatch: invalid command registration")
	}
	if name[0] != '/' {
		return fmt.Errorf("dispatch: command %q has no slash prefix", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("dispatch: command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// LookupCommand resolves message text such as "/start@bot args" by name or
// alias and returns the canonical name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	name, _, ok := commands.Parse(text)
	if !ok {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// ListCommands returns commands sorted by name, optionally without hidden ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

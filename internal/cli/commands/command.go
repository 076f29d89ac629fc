package commands

import (
	"Narrator/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrUsage возвращается командой при неверных аргументах; диспетчер печатает usage.
var ErrUsage = errors.New("usage")

// Command — подкоманда ttscli.
type Command interface {
	// Name — имя, которое вводит пользователь, например "convert".
	Name() string
	// Description — строка для справки.
	Description() string
	// Usage — формат вызова, например "convert <file> [out]".
	Usage() string
	Run(ctx context.Context, cfg *config.Config, args []string) error
}

var registry = map[string]Command{}

// Out — общий writer для вывода CLI. По умолчанию os.Stdout, в тестах подменяется.
var Out io.Writer = os.Stdout

// RegisterCmd добавляет команду в реестр; вызывается из init() файла команды.
func RegisterCmd(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Get возвращает команду по имени.
func Get(name string) (Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// List возвращает команды, отсортированные по имени.
func List() []Command {
	list := make([]Command, 0, len(registry))
	for _, c := range registry {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// FormatGlobalUsage собирает общую справку по всем командам.
func FormatGlobalUsage() string {
	var b strings.Builder
	b.WriteString("Narrator CLI: convert .pdf and .txt files to speech\n\n")
	b.WriteString("Usage:\n")
	b.WriteString("  ttscli [-base-url <host:port>] [-https] [-out-dir <dir>] <command> [args]\n\n")
	b.WriteString("Commands:\n")
	for _, c := range List() {
		fmt.Fprintf(&b, "  %-28s %s\n", c.Usage(), c.Description())
	}
	fmt.Fprintf(&b, "  %-28s %s\n", "help [command]", "Справка по команде")
	return b.String()
}

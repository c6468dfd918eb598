package netif

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"
)

const ipCommand = "ip"

var (
	headerPattern = regexp.MustCompile(`^\d+:\s+([^:\s@]+)(?:@[^:\s]+)?:\s+<([^>]*)>`)
	inetPattern   = regexp.MustCompile(`^\s+inet\s+(\d{1,3}(?:\.\d{1,3}){3})(?:/\d+)?\s`)
)

// CommandRunner executes a program without a shell and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ShellSource parses the output of `ip addr show`.
type ShellSource struct {
	run CommandRunner
}

// NewShellSource returns a ShellSource that runs the system `ip` binary.
func NewShellSource() *ShellSource {
	return &ShellSource{run: runCommand}
}

// NewShellSourceWithRunner returns a ShellSource backed by run.
func NewShellSourceWithRunner(run CommandRunner) *ShellSource {
	return &ShellSource{run: run}
}

// Interfaces lists non-loopback interfaces from `ip addr show`.
func (s *ShellSource) Interfaces(ctx context.Context) ([]Interface, error) {
	output, err := s.run(ctx, ipCommand, "addr", "show")
	if err != nil {
		return nil, err
	}
	return ParseIPAddr(string(output)), nil
}

// InterfaceIP runs `ip addr show dev <name>` and returns its first IPv4 address.
func (s *ShellSource) InterfaceIP(ctx context.Context, name string) (string, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	output, err := s.run(ctx, ipCommand, "addr", "show", "dev", name)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, iface := range parseIPAddr(string(output), true) {
		if iface.Name == name && iface.IPv4 != "" {
			return iface.IPv4, true, nil
		}
	}
	return "", false, nil
}

// ParseIPAddr extracts non-loopback interfaces from `ip addr show` output.
// Interfaces without an inet line are reported with an empty IPv4.
func ParseIPAddr(output string) []Interface {
	return parseIPAddr(output, false)
}

func parseIPAddr(output string, keepLoopback bool) []Interface {
	var (
		interfaces []Interface
		current    = -1
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if match := headerPattern.FindStringSubmatch(line); match != nil {
			current = -1
			flags := strings.Split(match[2], ",")
			if !keepLoopback && (match[1] == "lo" || hasFlag(flags, "LOOPBACK")) {
				continue
			}
			interfaces = append(interfaces, Interface{Name: match[1], Up: hasFlag(flags, "UP")})
			current = len(interfaces) - 1
			continue
		}
		if current < 0 || interfaces[current].IPv4 != "" {
			continue
		}
		if match := inetPattern.FindStringSubmatch(line); match != nil {
			interfaces[current].IPv4 = match[1]
		}
	}
	return interfaces
}

func hasFlag(flags []string, flag string) bool {
	for _, candidate := range flags {
		if strings.TrimSpace(candidate) == flag {
			return true
		}
	}
	return false
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

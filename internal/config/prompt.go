package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptPassword asks for the console password interactively when
// neither the flag nor the environment provided one. Input is a plain
// line read; scripted runs should set ZANRCON_PASSWORD instead.
func PromptPassword(r io.Reader, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)

	input, err := bufio.NewReader(r).ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" && err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return input, nil
}

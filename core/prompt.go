package core

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

const DefaultPrompt = `lsh:\w\$ `

// Prompt expands the escapes in the configured prompt.
func (s *Shell) Prompt() string {
	prompt := s.config.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	username := os.Getenv(EnvUser)
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	host, _ := os.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}

	pwd, _ := os.Getwd()
	home := os.Getenv(EnvHome)
	if home != "" && (pwd == home || strings.HasPrefix(pwd, home+"/")) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	base := filepath.Base(pwd)
	if pwd == "~" {
		base = "~"
	}

	prompt = strings.ReplaceAll(prompt, `\u`, username)
	prompt = strings.ReplaceAll(prompt, `\h`, host)
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)
	prompt = strings.ReplaceAll(prompt, `\W`, base)

	if os.Geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return s.promptColor.Sprint(prompt)
}

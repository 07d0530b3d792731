package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// scanTarget is a parsed `scan` argument list: a local path, or an SSH
// destination with an optional remote path.
type scanTarget struct {
	Remote      bool
	LocalPath   string
	Destination string
	RemotePath  string
}

func (t scanTarget) String() string {
	if t.Remote {
		return t.Destination + ":" + t.RemotePath
	}
	return t.LocalPath
}

// resolveScanTarget prefers an existing local path over a user@host
// reading, so a directory named alice@server is still scanned locally.
func resolveScanTarget(args []string) (scanTarget, error) {
	if len(args) == 0 {
		return scanTarget{LocalPath: "."}, nil
	}

	first := args[0]
	if pathExists(first) {
		if len(args) > 1 {
			return scanTarget{}, errors.New("too many arguments for a local scan")
		}
		return scanTarget{LocalPath: first}, nil
	}

	isRemote, err := checkRemoteTarget(first)
	if !isRemote {
		if len(args) > 1 {
			return scanTarget{}, errors.New("too many arguments")
		}
		return scanTarget{LocalPath: first}, nil
	}
	if err != nil {
		return scanTarget{}, err
	}
	if len(args) > 2 {
		return scanTarget{}, errors.New("too many arguments for a remote scan")
	}

	remotePath := "."
	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		remotePath = args[1]
	}
	return scanTarget{Remote: true, Destination: first, RemotePath: remotePath}, nil
}

// checkRemoteTarget reports whether raw reads as user@host and, if so,
// whether it is well formed. Ports belong in --ssh-port.
func checkRemoteTarget(raw string) (bool, error) {
	if strings.ContainsAny(raw, `/\`) || strings.Count(raw, "@") != 1 {
		return false, nil
	}

	user, host, _ := strings.Cut(raw, "@")
	switch {
	case user == "" || host == "":
		return true, fmt.Errorf("invalid remote target %q: expected user@host", raw)
	case strings.HasPrefix(user, "-") || strings.HasPrefix(host, "-"):
		return true, fmt.Errorf("invalid remote target %q", raw)
	case strings.ContainsAny(raw, " \t\r\n"):
		return true, fmt.Errorf("invalid remote target %q: spaces are not allowed", raw)
	}

	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		switch {
		case end == -1:
			return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		case end == 1:
			return true, fmt.Errorf("invalid remote target %q: empty host", raw)
		case end != len(host)-1:
			rest := host[end+1:]
			if strings.HasPrefix(rest, ":") && isDigits(rest[1:]) {
				return true, portInTarget(raw)
			}
			return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		}
		return true, nil
	}
	if strings.Contains(host, "]") {
		return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
	}
	if strings.Count(host, ":") == 1 {
		if _, port, _ := strings.Cut(host, ":"); isDigits(port) {
			return true, portInTarget(raw)
		}
	}
	return true, nil
}

func portInTarget(raw string) error {
	return fmt.Errorf("remote target %q must not include :port; use --ssh-port", raw)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

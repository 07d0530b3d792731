package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

var keyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authMethods offers the agent, then unencrypted default keys, then (outside
// batch mode) a password prompt shared by password and keyboard-interactive
// auth.
func authMethods(user, host string, batch bool) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK")); sock != "" {
		methods = append(methods, ssh.PublicKeysCallback(agentSigners(sock)))
	}
	if home, err := os.UserHomeDir(); err == nil {
		if signers := loadSigners(filepath.Join(home, ".ssh")); len(signers) > 0 {
			methods = append(methods, ssh.PublicKeys(signers...))
		}
	}
	if !batch {
		p := &passwordPrompt{label: user + "@" + host, read: readTerminalPassword}
		methods = append(methods, ssh.PasswordCallback(p.get), ssh.KeyboardInteractive(p.answer))
	}
	if len(methods) == 0 {
		return nil, errors.New("no ssh auth methods available: start ssh-agent, add a key under ~/.ssh or drop --ssh-batch")
	}
	return methods, nil
}

func agentSigners(sock string) func() ([]ssh.Signer, error) {
	return func() ([]ssh.Signer, error) {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return agent.NewClient(conn).Signers()
	}
}

// loadSigners parses the default private keys in dir, skipping missing and
// passphrase-protected ones.
func loadSigners(dir string) []ssh.Signer {
	var signers []ssh.Signer
	for _, name := range keyFiles {
		pem, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		s, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			continue
		}
		signers = append(signers, s)
	}
	return signers
}

// passwordPrompt asks once and caches the answer.
type passwordPrompt struct {
	label string
	read  func(label string) (string, error)

	once sync.Once
	pass string
	err  error
}

func (p *passwordPrompt) get() (string, error) {
	p.once.Do(func() { p.pass, p.err = p.read(p.label) })
	return p.pass, p.err
}

// answer fills every non-echoed question with the password.
func (p *passwordPrompt) answer(_, _ string, questions []string, echos []bool) ([]string, error) {
	answers := make([]string, len(questions))
	for i := range questions {
		if i < len(echos) && echos[i] {
			continue
		}
		pass, err := p.get()
		if err != nil {
			return nil, err
		}
		answers[i] = pass
	}
	return answers, nil
}

func readTerminalPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for ssh password: stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "%s's password: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("password prompt failed: %w", err)
	}
	return string(b), nil
}

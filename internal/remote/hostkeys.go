package remote

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// hostKeys verifies server keys against ~/.ssh/known_hosts. Unknown keys are
// trusted on first use after confirmation; changed keys need confirmation
// to be replaced. In batch mode both are errors.
type hostKeys struct {
	file   string
	host   string
	port   int
	batch  bool
	verify ssh.HostKeyCallback
	ask    func(question string) (bool, error)
}

func newHostKeys(host string, port int, batch bool) (*hostKeys, error) {
	file, err := knownHostsFile()
	if err != nil {
		return nil, err
	}
	return loadHostKeys(file, host, port, batch)
}

func loadHostKeys(file, host string, port int, batch bool) (*hostKeys, error) {
	verify, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("cannot load known_hosts: %w", err)
	}
	return &hostKeys{file: file, host: host, port: port, batch: batch, verify: verify, ask: askTerminal}, nil
}

func (h *hostKeys) callback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	err := h.verify(hostname, remote, key)
	if err == nil {
		return nil
	}
	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) {
		return fmt.Errorf("host key verification failed: %w", err)
	}

	addr := h.address()
	got := ssh.FingerprintSHA256(key)

	if len(keyErr.Want) == 0 {
		if h.batch {
			return fmt.Errorf("unknown host key %s for %s; connect once interactively to trust it", got, addr)
		}
		ok, err := h.ask(fmt.Sprintf("The authenticity of host '%s' can't be established.\n%s key fingerprint is %s.\nTrust this host (yes/no)? ", addr, key.Type(), got))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("host key for %s was not trusted", addr)
		}
		return h.append(key)
	}

	want := make([]string, len(keyErr.Want))
	for i, k := range keyErr.Want {
		want[i] = ssh.FingerprintSHA256(k.Key)
	}
	if h.batch {
		return fmt.Errorf("host key mismatch for %s: expected %s, got %s", addr, strings.Join(want, ", "), got)
	}
	ok, err := h.ask(fmt.Sprintf("WARNING: host key for '%s' has changed.\nExpected: %s\nPresented: %s\nReplace the stored key (yes/no)? ", addr, strings.Join(want, ", "), got))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("host key mismatch for %s", addr)
	}
	return h.replace(key)
}

// address is the known_hosts spelling of host and port.
func (h *hostKeys) address() string {
	if h.port == 22 {
		return h.host
	}
	return "[" + h.host + "]:" + strconv.Itoa(h.port)
}

func (h *hostKeys) line(key ssh.PublicKey) string {
	return knownhosts.Line([]string{h.address()}, key) + "\n"
}

func (h *hostKeys) append(key ssh.PublicKey) error {
	f, err := os.OpenFile(h.file, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("cannot update known_hosts: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(h.line(key)); err != nil {
		return fmt.Errorf("cannot write known_hosts: %w", err)
	}
	return nil
}

func (h *hostKeys) replace(key ssh.PublicKey) error {
	data, err := os.ReadFile(h.file)
	if err != nil {
		return fmt.Errorf("cannot read known_hosts: %w", err)
	}
	names := map[string]bool{
		h.host: h.port == 22,
		"[" + h.host + "]:" + strconv.Itoa(h.port): true,
	}
	out := dropHostLines(data, names)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, h.line(key)...)
	if err := os.WriteFile(h.file, out, 0o600); err != nil {
		return fmt.Errorf("cannot write known_hosts: %w", err)
	}
	return nil
}

// dropHostLines removes entries whose host list names any host marked true.
// Comments, blank lines and marker lines without hosts are kept.
func dropHostLines(data []byte, names map[string]bool) []byte {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		if !matchesHost(line, names) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

func matchesHost(line string, names map[string]bool) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false
	}
	if strings.HasPrefix(fields[0], "@") {
		fields = fields[1:]
		if len(fields) == 0 {
			return false
		}
	}
	for _, h := range strings.Split(fields[0], ",") {
		if names[h] {
			return true
		}
	}
	return false
}

func knownHostsFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate known_hosts: %w", err)
	}
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	file := filepath.Join(dir, "known_hosts")
	f, err := os.OpenFile(file, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("cannot open known_hosts: %w", err)
	}
	_ = f.Close()
	return file, nil
}

func askTerminal(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("cannot confirm host key: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("host key prompt failed: %w", err)
	}
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "y" || a == "yes", nil
}

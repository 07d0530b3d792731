package remote

import (
	"crypto/ed25519"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func newKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	assert.NilError(t, err)
	key, err := ssh.NewPublicKey(pub)
	assert.NilError(t, err)
	return key
}

func knownHosts(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "known_hosts")
	assert.NilError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

var remoteAddr = &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 22}

func TestHostKeys_UnknownInBatchMode(t *testing.T) {
	h, err := loadHostKeys(knownHosts(t, ""), "example.com", 22, true)
	assert.NilError(t, err)

	err = h.callback("example.com:22", remoteAddr, newKey(t))
	assert.ErrorContains(t, err, "unknown host key")
}

func TestHostKeys_TrustOnFirstUse(t *testing.T) {
	file := knownHosts(t, "")
	h, err := loadHostKeys(file, "example.com", 2222, false)
	assert.NilError(t, err)
	var asked string
	h.ask = func(q string) (bool, error) { asked = q; return true, nil }

	key := newKey(t)
	assert.NilError(t, h.callback("example.com:2222", remoteAddr, key))
	assert.Assert(t, is.Contains(asked, "can't be established"))

	data, err := os.ReadFile(file)
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(string(data), "[example.com]:2222 ssh-ed25519 "))

	again, err := loadHostKeys(file, "example.com", 2222, true)
	assert.NilError(t, err)
	assert.NilError(t, again.callback("example.com:2222", remoteAddr, key))
}

func TestHostKeys_Declined(t *testing.T) {
	h, err := loadHostKeys(knownHosts(t, ""), "example.com", 22, false)
	assert.NilError(t, err)
	h.ask = func(string) (bool, error) { return false, nil }

	err = h.callback("example.com:22", remoteAddr, newKey(t))
	assert.ErrorContains(t, err, "was not trusted")

	h.ask = func(string) (bool, error) { return false, errors.New("no tty") }
	err = h.callback("example.com:22", remoteAddr, newKey(t))
	assert.ErrorContains(t, err, "no tty")
}

func TestHostKeys_Mismatch(t *testing.T) {
	old := newKey(t)
	file := knownHosts(t, "other.com "+string(ssh.MarshalAuthorizedKey(old))+
		"example.com "+string(ssh.MarshalAuthorizedKey(old)))

	h, err := loadHostKeys(file, "example.com", 22, true)
	assert.NilError(t, err)
	presented := newKey(t)
	err = h.callback("example.com:22", remoteAddr, presented)
	assert.ErrorContains(t, err, "host key mismatch")
	assert.ErrorContains(t, err, ssh.FingerprintSHA256(old))

	h.batch = false
	h.ask = func(string) (bool, error) { return true, nil }
	assert.NilError(t, h.callback("example.com:22", remoteAddr, presented))

	data, err := os.ReadFile(file)
	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Assert(t, is.Len(lines, 2))
	assert.Assert(t, strings.HasPrefix(lines[0], "other.com "))
	assert.Assert(t, strings.HasPrefix(lines[1], "example.com ssh-ed25519 "))
}

func TestDropHostLines(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"example.com ssh-ed25519 AAAA",
		"[example.com]:22 ssh-ed25519 BBBB",
		"[example.com]:2222 ssh-ed25519 CCCC",
		"@revoked example.com,alias ssh-ed25519 EEEE",
		"other.com ssh-ed25519 DDDD",
		"",
	}, "\n")

	out := string(dropHostLines([]byte(input), map[string]bool{"example.com": true, "[example.com]:22": true}))
	assert.Assert(t, is.Contains(out, "# comment"))
	assert.Assert(t, !strings.Contains(out, "AAAA"))
	assert.Assert(t, !strings.Contains(out, "BBBB"))
	assert.Assert(t, !strings.Contains(out, "EEEE"))
	assert.Assert(t, is.Contains(out, "CCCC"))
	assert.Assert(t, is.Contains(out, "DDDD"))
}

func TestHostKeys_Address(t *testing.T) {
	assert.Equal(t, (&hostKeys{host: "example.com", port: 22}).address(), "example.com")
	assert.Equal(t, (&hostKeys{host: "example.com", port: 2222}).address(), "[example.com]:2222")
}

func TestPasswordPrompt_AsksOnce(t *testing.T) {
	calls := 0
	p := &passwordPrompt{label: "alice@host", read: func(label string) (string, error) {
		calls++
		assert.Equal(t, label, "alice@host")
		return "s3cret", nil
	}}

	pass, err := p.get()
	assert.NilError(t, err)
	assert.Equal(t, pass, "s3cret")

	answers, err := p.answer("", "", []string{"Password:", "Code:"}, []bool{false, true})
	assert.NilError(t, err)
	assert.DeepEqual(t, answers, []string{"s3cret", ""})
	assert.Equal(t, calls, 1)
}

func TestAuthMethods_BatchWithoutKeys(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())

	_, err := authMethods("alice", "host", true)
	assert.ErrorContains(t, err, "no ssh auth methods")

	methods, err := authMethods("alice", "host", false)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(methods, 2))
}

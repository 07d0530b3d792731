// Package remote scans directory trees on another host over SFTP.
package remote

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/pkg/sftp"
	"github.com/sadopc/sizestream/internal/scanner"
	"golang.org/x/crypto/ssh"
)

const defaultTimeout = 15 * time.Second

// Options configures the SSH connection.
type Options struct {
	// Target is user@host.
	Target string
	Port   int
	// BatchMode disables interactive prompts for passwords and host keys.
	BatchMode bool
	Timeout   time.Duration
}

// Conn is an SFTP session over SSH.
type Conn struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

var dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

var sshNewClientConn = ssh.NewClientConn

// Dial connects, authenticates and opens the SFTP subsystem.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("ssh port %d out of range: %w", opts.Port, errdefs.ErrInvalidArgument)
	}
	user, host, err := ParseTarget(opts.Target)
	if err != nil {
		return nil, err
	}

	keys, err := newHostKeys(host, opts.Port, opts.BatchMode)
	if err != nil {
		return nil, err
	}
	auth, err := authMethods(user, host, opts.BatchMode)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(opts.Port))
	log.G(ctx).WithField("addr", addr).Debug("connecting")
	sshClient, err := connectSSH(dialCtx, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: keys.callback,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %w", addr, err)
	}

	sc, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("cannot start sftp subsystem: %w", err)
	}
	return &Conn{ssh: sshClient, sftp: sc}, nil
}

// Scanner returns a scanner reading the remote tree rooted at root.
func (c *Conn) Scanner(root string, opts scanner.Options) *scanner.Scanner {
	return &scanner.Scanner{
		FS:       newFS(c.sftp, root),
		Identity: scanner.NoIdentity{},
		Disk:     &Disk{c: c.sftp},
		Options:  opts,
	}
}

func (c *Conn) Close() error {
	var retErr error
	if c.sftp != nil {
		retErr = c.sftp.Close()
	}
	if c.ssh != nil {
		if err := c.ssh.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}
	return retErr
}

func connectSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Closing the conn is the only way to interrupt the handshake.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c, chans, reqs, err := sshNewClientConn(conn, addr, config)
	if !stop() && err == nil {
		_ = c.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// ParseTarget splits user@host.
func ParseTarget(target string) (user, host string, err error) {
	user, host, ok := strings.Cut(strings.TrimSpace(target), "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("invalid remote target %q, expected user@host: %w", target, errdefs.ErrInvalidArgument)
	}
	return user, host, nil
}

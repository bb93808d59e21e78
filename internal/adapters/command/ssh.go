package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/ports"
	"golang.org/x/crypto/ssh"
)

// SSHConfig describes how to reach a remote Windows host running OpenSSH.
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	IdentityFile   string
	Password       string
	ConnectTimeout time.Duration
	// KnownHostsKey pins the host key in authorized_keys format. When empty
	// the host key is not verified.
	KnownHostsKey string
}

// SSHRunner executes commands on a remote host over SSH. Each Run opens a
// fresh session on a shared client connection.
type SSHRunner struct {
	cfg    SSHConfig
	client *ssh.Client
}

// DialSSH connects to the configured host.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSHRunner, error) {
	clientCfg, err := buildClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port))

	dialer := &net.Dialer{Timeout: clientCfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, clientCfg)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("SSH handshake failed: %w", err)
	}

	return &SSHRunner{cfg: cfg, client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

func buildClientConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh host is required")
	}

	var methods []ssh.AuthMethod
	if cfg.IdentityFile != "" {
		signer, err := loadPrivateKey(cfg.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load identity file %s: %w", cfg.IdentityFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("no SSH authentication methods configured")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via empty KnownHostsKey
	if cfg.KnownHostsKey != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.KnownHostsKey))
		if err != nil {
			return nil, fmt.Errorf("invalid host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(key)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	user := cfg.User
	if user == "" {
		user = os.Getenv("USER")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

func loadPrivateKey(path string) (ssh.Signer, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, path[2:])
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

// Run executes the command on the remote host. On context expiry the session
// is signalled and closed, which terminates the remote process.
func (r *SSHRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return ports.CommandResult{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := JoinWindowsCommandLine(command, args...)
	done := make(chan error, 1)
	start := time.Now()

	go func() {
		done <- session.Run(line)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		result := ports.CommandResult{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w after %s: %s", ports.ErrCommandTimeout, result.Duration.Round(time.Millisecond), command)
		}
		return result, ctx.Err()
	case err := <-done:
		result := ports.CommandResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
				return result, nil
			}
			return result, err
		}
		return result, nil
	}
}

// Close closes the underlying SSH connection.
func (r *SSHRunner) Close() error {
	return r.client.Close()
}

// JoinWindowsCommandLine quotes arguments following the CommandLineToArgvW
// rules so the remote cmd.exe/PowerShell shell hands them to choco verbatim.
func JoinWindowsCommandLine(command string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteWindowsArg(command))
	for _, a := range args {
		parts = append(parts, quoteWindowsArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteWindowsArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, " \t\"") {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	backslashes := 0
	for _, c := range arg {
		switch c {
		case '\\':
			backslashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, backslashes*2+1))
			b.WriteRune(c)
			backslashes = 0
		default:
			b.WriteString(strings.Repeat(`\`, backslashes))
			b.WriteRune(c)
			backslashes = 0
		}
	}
	b.WriteString(strings.Repeat(`\`, backslashes*2))
	b.WriteByte('"')
	return b.String()
}

// Ensure SSHRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*SSHRunner)(nil)

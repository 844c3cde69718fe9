package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"tunnel/internal/proc"
)

// Kind enumerates the ways of proving identity to the relay, in priority order.
type Kind int

const (
	SSHPass Kind = iota + 1 // passphrase injected by sshpass
	Expect                  // passphrase typed by an expect script
	Pipe                    // passphrase piped into ssh's stdin
	NoAuth                  // no credential offered
)

func (k Kind) String() string {
	switch k {
	case SSHPass:
		return "sshpass"
	case Expect:
		return "expect"
	case Pipe:
		return "pipe"
	case NoAuth:
		return "noauth"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Relay is the fixed remote forwarding endpoint.
type Relay struct {
	Host       string
	Port       int
	User       string // user for authenticated mechanisms
	RemotePort int    // 0 asks the relay for an ephemeral port
}

// Attempt is one candidate mechanism with its fully built command line.
type Attempt struct {
	Kind    Kind
	Helper  string        // optional utility that must be present; empty when none is needed
	Command proc.Command  // the process whose exit status decides the attempt
	Stdin   *proc.Command // producer piped into Command's stdin (Pipe only)
}

func (a Attempt) String() string {
	if a.Stdin != nil {
		return a.Stdin.String() + " | " + a.Command.String()
	}
	return a.Command.String()
}

// sshArgs builds the reverse-forward ssh argument list. Host key checking is
// off: the relay identity is not verified.
func (r Relay) sshArgs(localPort int, withUser bool) []string {
	target := r.Host
	if withUser && r.User != "" {
		target = r.User + "@" + r.Host
	}
	return []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=" + os.DevNull,
		"-p", strconv.Itoa(r.Port),
		fmt.Sprintf("-R%d:localhost:%d", r.RemotePort, localPort),
		target,
	}
}

// expectScript answers the password prompt once and then waits for the
// session to end without the default 10s expect timeout.
func expectScript(sshArgs []string, credential string) string {
	var b strings.Builder
	b.WriteString("set timeout -1\n")
	b.WriteString("spawn ssh " + strings.Join(sshArgs, " ") + "\n")
	b.WriteString("expect \"password:\"\n")
	fmt.Fprintf(&b, "send \"%s\\r\"\n", credential)
	b.WriteString("expect eof\n")
	return b.String()
}

// Attempts returns every mechanism, in the order they are tried. None of them
// gets a controlling terminal: an ssh password prompt on /dev/tty must fail
// the attempt rather than stop it in a background process group.
func Attempts(r Relay, credential string, localPort int) []Attempt {
	authed := r.sshArgs(localPort, true)
	return []Attempt{
		{
			Kind:    SSHPass,
			Helper:  "sshpass",
			Command: proc.Command{Program: "sshpass", Args: append([]string{"-e", "ssh"}, authed...), Env: []string{"SSHPASS=" + credential}, NoTTY: true},
		},
		{
			Kind:    Expect,
			Helper:  "expect",
			Command: proc.Command{Program: "expect", Args: []string{"-c", expectScript(authed, credential)}, NoTTY: true},
		},
		{
			Kind:    Pipe,
			Command: proc.Command{Program: "ssh", Args: authed, NoTTY: true},
			Stdin:   &proc.Command{Program: "echo", Args: []string{credential}, NoTTY: true},
		},
		{
			Kind:    NoAuth,
			Command: proc.Command{Program: "ssh", Args: r.sshArgs(localPort, false), NoTTY: true},
		},
	}
}

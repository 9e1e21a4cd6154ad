package wifi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Network is one scan result.
type Network struct {
	SSID   string
	Signal int
	Secure bool
}

// Scanner lists visible networks.
type Scanner interface {
	Scan(ctx context.Context) ([]Network, error)
}

// NMCLI drives NetworkManager's command line client. It implements both
// Connector and Scanner.
type NMCLI struct {
	// Path to the nmcli binary; "nmcli" when empty.
	Path string
	// Interface restricts operations to one device when set.
	Interface string
}

func (n NMCLI) bin() string {
	if n.Path == "" {
		return "nmcli"
	}
	return n.Path
}

func (n NMCLI) Connect(ctx context.Context, ssid, password string) error {
	args := []string{"dev", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	if n.Interface != "" {
		args = append(args, "ifname", n.Interface)
	}
	out, err := exec.CommandContext(ctx, n.bin(), args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli connect %q: %w: %s", ssid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (n NMCLI) Scan(ctx context.Context) ([]Network, error) {
	args := []string{"-t", "-f", "SSID,SIGNAL,SECURITY", "dev", "wifi", "list", "--rescan", "yes"}
	if n.Interface != "" {
		args = append(args, "ifname", n.Interface)
	}
	out, err := exec.CommandContext(ctx, n.bin(), args...).Output()
	if err != nil {
		return nil, fmt.Errorf("nmcli scan: %w", err)
	}
	return ParseNMCLIList(out), nil
}

// ParseNMCLIList parses terse "SSID:SIGNAL:SECURITY" output. Hidden networks
// are skipped, duplicates keep the strongest signal and results are sorted
// strongest first.
func ParseNMCLIList(out []byte) []Network {
	best := map[string]Network{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := splitTerse(sc.Text())
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		sec := strings.TrimSpace(fields[2])
		nw := Network{SSID: fields[0], Signal: signal, Secure: sec != "" && sec != "--"}
		if prev, ok := best[nw.SSID]; !ok || nw.Signal > prev.Signal {
			best[nw.SSID] = nw
		}
	}
	out2 := make([]Network, 0, len(best))
	for _, nw := range best {
		out2 = append(out2, nw)
	}
	sort.Slice(out2, func(i, j int) bool {
		if out2[i].Signal != out2[j].Signal {
			return out2[i].Signal > out2[j].Signal
		}
		return out2[i].SSID < out2[j].SSID
	})
	return out2
}

// splitTerse splits on ':' honouring nmcli's backslash escapes.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

// Probe treats the link as up when a TCP connection to Addr succeeds. It is
// the connector for hosts whose wireless is managed outside the daemon.
type Probe struct {
	Addr    string
	Timeout time.Duration
}

func (p Probe) Connect(ctx context.Context, ssid, _ string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("reach %s: %w", p.Addr, err)
	}
	return conn.Close()
}

// StaticScanner returns a fixed list.
type StaticScanner []Network

func (s StaticScanner) Scan(context.Context) ([]Network, error) {
	out := make([]Network, len(s))
	copy(out, s)
	return out, nil
}

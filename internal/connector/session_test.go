package connector

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/devconn/devconn/internal/inventory"
)

// startUnresponsiveSSHServer runs an in-process SSH server that completes
// the handshake, acknowledges exec, pty, and shell requests, and then goes
// silent: no output, no exit status. It returns the listening port.
func startUnresponsiveSSHServer(t *testing.T) int {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	serverConfig := &ssh.ServerConfig{NoClientAuth: true}
	serverConfig.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				_, chans, reqs, err := ssh.NewServerConn(c, serverConfig)
				if err != nil {
					c.Close()
					return
				}
				go ssh.DiscardRequests(reqs)
				for newChan := range chans {
					ch, requests, err := newChan.Accept()
					if err != nil {
						continue
					}
					_ = ch // channel deliberately left open with no data
					go func(in <-chan *ssh.Request) {
						for req := range in {
							if req.WantReply {
								req.Reply(true, nil)
							}
						}
					}(requests)
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func wedgedDeviceGateway(port int) *inventory.MockGateway {
	gw := inventory.NewMockGateway()
	gw.AddDevice(&inventory.Device{
		ID:           "sw1",
		Name:         "sw1",
		ManagementIP: "127.0.0.1",
		Platform:     "cisco-ios",
		Manufacturer: "cisco",
	})
	gw.AddSecrets("sw1", &inventory.Secrets{Username: "admin", Password: "admin", Port: port})
	return gw
}

func TestDirectExecuteCommandSessionTimeout(t *testing.T) {
	port := startUnresponsiveSSHServer(t)

	cfg := directConfig()
	cfg.SessionTimeoutMS = 500
	d := NewDirect(wedgedDeviceGateway(port), cfg, slog.Default())

	start := time.Now()
	result := d.ExecuteCommand(context.Background(), "sw1", "show version")
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("expected failure against a device that never answers")
	}
	if !strings.Contains(result.Message, "command execution error") {
		t.Errorf("unexpected message: %s", result.Message)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("returned after %s, expected the 500ms session timeout to bound it", elapsed)
	}
}

func TestDirectDeployConfigurationSessionTimeout(t *testing.T) {
	port := startUnresponsiveSSHServer(t)

	cfg := directConfig()
	cfg.SessionTimeoutMS = 500
	d := NewDirect(wedgedDeviceGateway(port), cfg, slog.Default())

	start := time.Now()
	result := d.DeployConfiguration(context.Background(), "sw1", "hostname sw1\n", DeployOptions{})
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("expected failure against a device that never answers")
	}
	if !strings.Contains(result.Message, "configuration deployment error") {
		t.Errorf("unexpected message: %s", result.Message)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("returned after %s, expected the 500ms session timeout to bound it", elapsed)
	}
}

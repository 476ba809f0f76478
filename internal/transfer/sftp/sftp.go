// Package sftp is the SSH file-transfer channel to the SAP exchange host.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mnshuhailey/ppa-sap/internal/transfer"
)

type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	KnownHosts string
	Timeout    time.Duration
}

type Channel struct {
	client *sftp.Client
	conn   *ssh.Client
}

// Dial opens an SSH session and starts the SFTP subsystem on it.
func Dial(ctx context.Context, cfg Config) (*Channel, error) {
	hostKey, err := hostKeyCallback(cfg.KnownHosts)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	d := net.Dialer{Timeout: timeout}

	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(raw, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	})
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	conn := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("starting sftp on %s: %w", addr, err)
	}

	return &Channel{client: client, conn: conn}, nil
}

// NewFromClient wraps an existing SFTP client.
func NewFromClient(client *sftp.Client) *Channel {
	return &Channel{client: client}
}

func hostKeyCallback(file string) (ssh.HostKeyCallback, error) {
	if file == "" {
		slog.Warn("sftp host key verification disabled, set TRANSFER_SFTP_KNOWN_HOSTS to enable it")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts %s: %w", file, err)
	}

	return cb, nil
}

func (c *Channel) Exists(_ context.Context, p string) (bool, error) {
	_, err := c.client.Stat(remote(p))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}

// Create writes to a hidden ".part" sibling that is renamed into place on
// Close, so readers never see a partial file.
func (c *Channel) Create(_ context.Context, p string) (transfer.Writer, error) {
	target := remote(p)
	part := path.Join(path.Dir(target), "."+path.Base(target)+".part")

	f, err := c.client.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path.Dir(p), transfer.ErrDirNotFound)
		}

		return nil, err
	}

	return &partFile{File: f, client: c.client, part: part, target: target}, nil
}

type partFile struct {
	*sftp.File
	client *sftp.Client
	part   string
	target string
}

func (f *partFile) Close() error {
	if err := f.File.Close(); err != nil {
		_ = f.client.Remove(f.part)
		return err
	}

	err := f.client.PosixRename(f.part, f.target)
	if err != nil {
		// servers without the posix-rename extension
		err = f.client.Rename(f.part, f.target)
	}

	if err != nil {
		_ = f.client.Remove(f.part)
		return fmt.Errorf("renaming %s: %w", f.part, err)
	}

	return nil
}

func (f *partFile) Abort() error {
	_ = f.File.Close()

	if err := f.client.Remove(f.part); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

func (c *Channel) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return c.client.Open(remote(p))
}

func (c *Channel) List(_ context.Context, dir string) ([]transfer.FileInfo, error) {
	entries, err := c.client.ReadDir(remote(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, transfer.ErrDirNotFound)
		}

		return nil, err
	}

	files := make([]transfer.FileInfo, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		files = append(files, transfer.FileInfo{
			Name:    e.Name(),
			Size:    e.Size(),
			ModTime: e.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

func (c *Channel) Close() error {
	err := c.client.Close()

	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// remote keeps configured paths relative to the login directory.
func remote(p string) string {
	if p == "" || p == "/" {
		return "."
	}

	return transfer.Clean(p)
}

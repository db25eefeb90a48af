// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package sync

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/mesa-nmanteufel/testhub/internal/db"
)

// Uploader pushes report files to the central results server over SFTP.
type Uploader struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// hostKeyCallback verifies the server against the key pinned in the station
// database. First contact must go through `testhub trust-host`.
func hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	presentedKey := string(ssh.MarshalAuthorizedKey(key))

	knownKey, err := db.GetKnownHostKey(host)
	if err != nil {
		return fmt.Errorf("failed to query known hosts: %w", err)
	}
	if knownKey == "" {
		return fmt.Errorf("unknown host key for %s. run 'testhub trust-host' to add it", host)
	}
	if knownKey != presentedKey {
		return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
	}
	return nil
}

// parseStationKey parses the configured private key. Encrypted keys prompt
// for the passphrase on the station console when one is attached.
func parseStationKey(keyFile string, keyData []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(keyData)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("Enter passphrase for %s: ", keyFile)
		passphrase, readErr := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if readErr != nil {
			return nil, fmt.Errorf("unable to read key passphrase: %w", readErr)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, passphrase)
		if err != nil {
			return nil, fmt.Errorf("unable to decrypt private key: %w", err)
		}
		return signer, nil
	}

	return nil, fmt.Errorf("unable to parse private key: %w", err)
}

// NewUploader connects to user@host. When keyFile is set, that key is tried
// first; the SSH agent is the fallback.
func NewUploader(host, user, keyFile string) (*Uploader, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	var finalErr error
	if keyFile != "" {
		keyData, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %w", err)
		}
		signer, err := parseStationKey(keyFile, keyData)
		if err != nil {
			return nil, err
		}

		config := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}
		client, err := ssh.Dial("tcp", addr, config)
		if err == nil {
			sftpClient, sftpErr := sftp.NewClient(client)
			if sftpErr != nil {
				client.Close()
				return nil, fmt.Errorf("failed to create sftp client: %w", sftpErr)
			}
			return &Uploader{client: client, sftp: sftpClient}, nil
		}
		// Anything other than an auth failure means the key file was the
		// wrong approach entirely; fail fast.
		if !strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("connection with station key failed: %w", err)
		}
		finalErr = err
	}

	agentClient := getSSHAgent()
	if agentClient == nil {
		if finalErr != nil {
			return nil, fmt.Errorf("station key authentication failed, and no SSH agent available for fallback: %w", finalErr)
		}
		return nil, fmt.Errorf("no authentication method available (no key file configured and no ssh agent found)")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	return &Uploader{client: client, sftp: sftpClient}, nil
}

// Upload writes content to remoteDir/name atomically: temp file first, then
// rename, so the results server never indexes a half-written report.
func (u *Uploader) Upload(remoteDir, name string, content []byte) error {
	_ = u.sftp.MkdirAll(remoteDir)

	tmpPath := path.Join(remoteDir, fmt.Sprintf(".%s.testhub.%d", name, time.Now().UnixNano()))
	f, err := u.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on remote: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		_ = u.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	f.Close()

	if err := u.sftp.Chmod(tmpPath, 0o644); err != nil {
		_ = u.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}

	finalPath := path.Join(remoteDir, name)
	// Overwrite-by-rename needs the destination gone on servers without
	// posix-rename support.
	_ = u.sftp.Remove(finalPath)
	if err := u.sftp.Rename(tmpPath, finalPath); err != nil {
		_ = u.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to rename report file into place: %w", err)
	}
	return nil
}

// Close closes the underlying SSH and SFTP clients.
func (u *Uploader) Close() {
	if u.sftp != nil {
		u.sftp.Close()
	}
	if u.client != nil {
		u.client.Close()
	}
}

// GetRemoteHostKey connects to a host just to retrieve its public key, for
// the trust-host command.
func GetRemoteHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		// No authentication needed; the handshake alone presents the key.
		User: "testhub-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			return fmt.Errorf("testhub: successfully retrieved host key")
		},
		Timeout: 5 * time.Second,
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), "testhub: successfully retrieved host key") {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}
